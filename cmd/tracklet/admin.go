package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rkwebforge/tracklet/internal/db"
	"github.com/rkwebforge/tracklet/internal/retention"
)

const adminUsage = `Usage:
  tracklet admin reset-password --email user@example.com [--password <new>] [--db-dsn <dsn>]
  tracklet admin purge [--invite-days <n>] [--audit-days <n>] [--db-dsn <dsn>]

reset-password sets a user's password; with --password omitted a random
one is generated and printed. purge runs the retention sweep once,
outside the nightly schedule. --db-dsn defaults to TRK_DB_DSN.
`

func runAdmin(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, adminUsage)
		return 2
	}

	switch args[0] {
	case "reset-password":
		return runResetPassword(args[1:])
	case "purge":
		return runPurge(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		fmt.Fprint(os.Stderr, adminUsage)
		return 2
	}
}

// openAdminPool resolves the DSN flag against TRK_DB_DSN and connects.
func openAdminPool(ctx context.Context, dbDSN string) (*pgxpool.Pool, int) {
	if dbDSN == "" {
		dbDSN = strings.TrimSpace(os.Getenv("TRK_DB_DSN"))
	}
	if dbDSN == "" {
		fmt.Fprintln(os.Stderr, "--db-dsn is required (or set TRK_DB_DSN)")
		return nil, 2
	}

	pool, err := db.Connect(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, 1
	}
	return pool, 0
}

func runResetPassword(args []string) int {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var email, password, dbDSN string
	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&password, "password", "", "New password (if empty, generates one)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to TRK_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Emails are stored lowercase, match signup's normalization.
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	generated := false
	if password == "" {
		pw, err := generatePassword(24)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate password: %v\n", err)
			return 1
		}
		password = pw
		generated = true
	}
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "Password must be at least 8 characters")
		return 2
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, code := openAdminPool(ctx, dbDSN)
	if pool == nil {
		return code
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE email = $1`, email, passwordHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update password: %v\n", err)
		return 1
	}
	if tag.RowsAffected() == 0 {
		fmt.Fprintf(os.Stderr, "No user found with email %q\n", email)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Password updated.")
	if generated {
		fmt.Fprintln(os.Stdout, password)
	}
	return 0
}

func runPurge(args []string) int {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dbDSN string
	var inviteDays, auditDays int
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to TRK_DB_DSN)")
	fs.IntVar(&inviteDays, "invite-days", 30, "Purge invitations expired at least this many days ago")
	fs.IntVar(&auditDays, "audit-days", 180, "Purge audit entries older than this many days")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, code := openAdminPool(ctx, dbDSN)
	if pool == nil {
		return code
	}
	defer pool.Close()

	if err := retention.NewPurger(pool, inviteDays, auditDays).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Purge failed: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Purge complete.")
	return 0
}

func generatePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, printable, without padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
