package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventOrgCreated           = "org.created"
	EventOrgUpdated           = "org.updated"
	EventOrgDeleted           = "org.deleted"
	EventOrgInviteCreated     = "org.invite_created"
	EventOrgInviteRevoked     = "org.invite_revoked"
	EventOrgInviteRedeemed    = "org.invite_redeemed"
	EventOrgMemberAdded       = "org.member_added"
	EventOrgMemberRoleUpdated = "org.member_role_updated"
	EventOrgMemberRemoved     = "org.member_removed"
	EventProjectCreated       = "project.created"
	EventProjectDeleted       = "project.deleted"
	EventTaskCreated          = "task.created"
	EventTaskDeleted          = "task.deleted"
)

// Writer provides methods to write audit log entries.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	OrgID       *uuid.UUID
	ProjectID   *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (org_id, project_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := w.pool.Exec(ctx, query,
		toNullUUID(params.OrgID),
		toNullUUID(params.ProjectID),
		toNullUUID(params.ActorUserID),
		params.Action,
		metaJSON,
	)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	return nil
}

func (w *Writer) LogOrgCreated(ctx context.Context, orgID, actorUserID uuid.UUID, slug string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgCreated,
		Meta:        map[string]interface{}{"slug": slug},
	})
}

func (w *Writer) LogOrgInviteCreated(ctx context.Context, orgID, actorUserID, inviteID uuid.UUID, role string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgInviteCreated,
		Meta:        map[string]interface{}{"invite_id": inviteID.String(), "role": role},
	})
}

func (w *Writer) LogOrgInviteRevoked(ctx context.Context, orgID, actorUserID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgInviteRevoked,
		Meta:        map[string]interface{}{"invite_id": inviteID.String()},
	})
}

func (w *Writer) LogOrgMemberAdded(ctx context.Context, orgID, actorUserID, memberUserID uuid.UUID, role string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgMemberAdded,
		Meta:        map[string]interface{}{"member_user_id": memberUserID.String(), "role": role},
	})
}

func (w *Writer) LogOrgMemberRoleUpdated(ctx context.Context, orgID, actorUserID, memberUserID uuid.UUID, oldRole, newRole string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgMemberRoleUpdated,
		Meta: map[string]interface{}{
			"member_user_id": memberUserID.String(),
			"old_role":       oldRole,
			"new_role":       newRole,
		},
	})
}

func (w *Writer) LogOrgMemberRemoved(ctx context.Context, orgID, actorUserID, memberUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgMemberRemoved,
		Meta:        map[string]interface{}{"member_user_id": memberUserID.String()},
	})
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
