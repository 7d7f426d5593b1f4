package orgs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/audit"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rs/zerolog/log"
)

// CreateRequest represents the request to create an organization
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateRequest represents the request to update an organization
type UpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type OrgResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   string    `json:"created_at"`
}

type OrgListItemResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
	Role string    `json:"role"`
}

func orgResponse(org *Org) OrgResponse {
	return OrgResponse{
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		OwnerID:     org.OwnerID,
		CreatedAt:   org.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseOrgID(r *http.Request) (uuid.UUID, bool) {
	orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
	return orgID, err == nil
}

// HandleCreate handles POST /api/v1/orgs
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Organization name is required")
			return
		}
		if len(req.Name) > 255 {
			apperrors.WriteBadRequest(w, r, "Organization name is too long")
			return
		}
		if len(req.Description) > 1000 {
			apperrors.WriteBadRequest(w, r, "Description is too long")
			return
		}

		org, err := svc.Create(ctx, req.Name, req.Description, userID)
		if err != nil {
			if errors.Is(err, ErrInvalidOrgName) {
				apperrors.WriteBadRequest(w, r, "Organization name must contain letters or digits")
				return
			}
			log.Error().Err(err).Msg("Failed to create organization")
			apperrors.WriteInternalError(w, r, "Failed to create organization")
			return
		}

		if err := auditor.LogOrgCreated(ctx, org.ID, userID, org.Slug); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"org": orgResponse(org),
		})
	}
}

// HandleList handles GET /api/v1/orgs
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgs, err := svc.ListUserOrgs(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list organizations")
			apperrors.WriteInternalError(w, r, "Failed to list organizations")
			return
		}

		resp := make([]OrgListItemResponse, len(orgs))
		for i, org := range orgs {
			resp[i] = OrgListItemResponse{
				ID:   org.ID,
				Name: org.Name,
				Slug: org.Slug,
				Role: org.Role.String(),
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"orgs": resp,
		})
	}
}

// HandleGet handles GET /api/v1/orgs/{org_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		role, err := svc.EffectiveRoleOf(ctx, userID, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve org role")
			apperrors.WriteInternalError(w, r, "Failed to check permissions")
			return
		}
		if !CanViewOrg(role) {
			// Non-members get a 404, not a 403, to avoid leaking existence
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		org, err := svc.GetByID(ctx, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to get organization")
			apperrors.WriteInternalError(w, r, "Failed to get organization")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org":  orgResponse(org),
			"role": role.String(),
		})
	}
}

// HandleUpdate handles PUT /api/v1/orgs/{org_id}
func HandleUpdate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Organization name is required")
			return
		}

		role, err := svc.EffectiveRoleOf(ctx, userID, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve org role")
			apperrors.WriteInternalError(w, r, "Failed to check permissions")
			return
		}
		if !CanUpdateOrg(role) {
			apperrors.WriteForbidden(w, r, "Insufficient permissions")
			return
		}

		org, err := svc.Update(ctx, orgID, req.Name, req.Description)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to update organization")
			apperrors.WriteInternalError(w, r, "Failed to update organization")
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			OrgID:       &orgID,
			ActorUserID: &userID,
			Action:      audit.EventOrgUpdated,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org": orgResponse(org),
		})
	}
}

// HandleDelete handles DELETE /api/v1/orgs/{org_id}. Only the owner may
// delete; admins are not enough.
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		role, err := svc.EffectiveRoleOf(ctx, userID, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve org role")
			apperrors.WriteInternalError(w, r, "Failed to check permissions")
			return
		}
		if !CanDeleteOrg(role) {
			apperrors.WriteForbidden(w, r, "Only the owner can delete an organization")
			return
		}

		if err := svc.Delete(ctx, orgID); err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to delete organization")
			apperrors.WriteInternalError(w, r, "Failed to delete organization")
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			ActorUserID: &userID,
			Action:      audit.EventOrgDeleted,
			Meta:        map[string]interface{}{"org_id": orgID.String()},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// HandleListAudit handles GET /api/v1/orgs/{org_id}/audit
func HandleListAudit(svc *Service, reader *audit.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		if _, err := svc.RequireManageMembers(ctx, userID, orgID); err != nil {
			writePolicyError(w, r, err, "Failed to check permissions")
			return
		}

		opts := audit.ListOptions{Action: r.URL.Query().Get("action")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				opts.Limit = v
			}
		}
		if raw := r.URL.Query().Get("before"); raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				opts.Before = ts
			}
		}

		events, err := reader.ListByOrg(ctx, orgID, opts)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit log")
			apperrors.WriteInternalError(w, r, "Failed to list audit log")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": events,
		})
	}
}

// writePolicyError maps the common policy/lookup failures to HTTP responses
func writePolicyError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrOrgNotFound), errors.Is(err, ErrNotMember):
		apperrors.WriteNotFound(w, r, "Organization not found")
	case errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	default:
		log.Error().Err(err).Msg(logMsg)
		apperrors.WriteInternalError(w, r, logMsg)
	}
}
