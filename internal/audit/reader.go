package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Reader serves the audit trail back out of the database.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// Event is one audit entry as returned to clients, with the actor's
// email joined in for display.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	OrgID       uuid.UUID      `json:"org_id"`
	ProjectID   *uuid.UUID     `json:"project_id,omitempty"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorEmail  string         `json:"actor_email,omitempty"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListOptions narrows an org's audit listing. Zero values mean no filter.
type ListOptions struct {
	// Action restricts results to one event type, e.g. "org.invite_redeemed".
	Action string
	// Before returns only events older than the given instant, for paging.
	Before time.Time
	Limit  int
}

// ListByOrg returns the org's newest events first.
func (r *Reader) ListByOrg(ctx context.Context, orgID uuid.UUID, opts ListOptions) ([]Event, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	query := `
		SELECT al.id, al.org_id, al.project_id, al.actor_user_id, u.email, al.action, al.meta, al.created_at
		FROM audit_log al
		LEFT JOIN users u ON u.id = al.actor_user_id
		WHERE al.org_id = $1`
	args := []any{orgID}

	if opts.Action != "" {
		args = append(args, opts.Action)
		query += fmt.Sprintf(" AND al.action = $%d", len(args))
	}
	if !opts.Before.IsZero() {
		args = append(args, opts.Before)
		query += fmt.Sprintf(" AND al.created_at < $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY al.created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev          Event
			projectID   uuid.NullUUID
			actorUserID uuid.NullUUID
			actorEmail  *string
			metaRaw     []byte
		)
		if err := rows.Scan(&ev.ID, &ev.OrgID, &projectID, &actorUserID, &actorEmail, &ev.Action, &metaRaw, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}

		if projectID.Valid {
			ev.ProjectID = &projectID.UUID
		}
		if actorUserID.Valid {
			ev.ActorUserID = &actorUserID.UUID
		}
		if actorEmail != nil {
			ev.ActorEmail = *actorEmail
		}

		ev.Meta = map[string]any{}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &ev.Meta)
		}

		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}

	return out, nil
}
