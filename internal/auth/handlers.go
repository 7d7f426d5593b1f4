package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// RedeemInviteFunc redeems an invitation token for a freshly registered user.
// Wired in by the router to avoid a dependency on the orgs package.
type RedeemInviteFunc func(ctx context.Context, token string, userID uuid.UUID) error

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	InviteToken string `json:"invite_token,omitempty"`
}

// SignupResponse represents the signup response
type SignupResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// HandleSignup processes user registration. If an invite token is supplied
// the new user is additionally joined to the inviting organization; a stale
// or invalid token does not fail the registration itself.
func HandleSignup(pool *pgxpool.Pool, redeemInvite RedeemInviteFunc, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)

		if !isValidEmail(req.Email) {
			apperrors.WriteBadRequest(w, r, "Invalid email address")
			return
		}
		if len(req.Password) < 8 {
			apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			return
		}

		passwordHash, err := HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		var userID uuid.UUID
		query := `
			INSERT INTO users (name, email, password_hash)
			VALUES ($1, $2, $3)
			RETURNING id
		`

		err = pool.QueryRow(r.Context(), query, req.Name, req.Email, passwordHash).Scan(&userID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
				apperrors.WriteConflict(w, r, "Email address already registered")
				return
			}

			log.Error().Err(err).Str("email", req.Email).Msg("Failed to insert user")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		if req.InviteToken != "" && redeemInvite != nil {
			if err := redeemInvite(r.Context(), req.InviteToken, userID); err != nil {
				// The account exists regardless; the user can retry the
				// invitation link while logged in.
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("Invite redemption during signup failed")
			}
		}

		token, err := IssueSessionToken(userID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}

		SetSessionCookie(w, token, sessionDays, isProduction)

		log.Info().
			Str("user_id", userID.String()).
			Str("email", req.Email).
			Msg("User signed up successfully")

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"user": SignupResponse{
				UserID: userID,
				Email:  req.Email,
			},
		})
	}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// HandleLogin processes user authentication
func HandleLogin(pool *pgxpool.Pool, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		var userID uuid.UUID
		var passwordHash string
		query := `SELECT id, password_hash FROM users WHERE email = $1`

		err := pool.QueryRow(r.Context(), query, req.Email).Scan(&userID, &passwordHash)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Debug().Str("email", req.Email).Msg("Login failed: user not found")
				apperrors.WriteUnauthorized(w, r, "Invalid credentials")
				return
			}
			log.Error().Err(err).Str("email", req.Email).Msg("Failed to query user")
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		if err := VerifyPassword(passwordHash, req.Password); err != nil {
			log.Debug().Str("email", req.Email).Msg("Login failed: wrong password")
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		token, err := IssueSessionToken(userID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}

		SetSessionCookie(w, token, sessionDays, isProduction)

		log.Info().
			Str("user_id", userID.String()).
			Msg("User logged in successfully")

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": LoginResponse{
				UserID: userID,
				Email:  req.Email,
			},
		})
	}
}

// HandleLogout processes user logout
func HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ClearSessionCookie(w)

		userID := GetUserID(r.Context())
		if userID != uuid.Nil {
			log.Info().Str("user_id", userID.String()).Msg("User logged out")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"logged_out": true,
		})
	}
}

// isValidEmail validates email format using net/mail (RFC 5322 simplified)
func isValidEmail(email string) bool {
	if email == "" || len(email) > 320 {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}
