package orgs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/audit"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rs/zerolog/log"
)

type AddMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

type MemberResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Role    string    `json:"role"`
	IsOwner bool      `json:"is_owner"`
}

// HandleListMembers handles GET /api/v1/orgs/{org_id}/members
func HandleListMembers(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		members, err := svc.ListMembers(ctx, orgID, userID)
		if err != nil {
			writePolicyError(w, r, err, "Failed to list members")
			return
		}

		org, err := svc.GetByID(ctx, orgID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get organization")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		resp := make([]MemberResponse, len(members))
		for i, m := range members {
			resp[i] = MemberResponse{
				UserID:  m.UserID,
				Name:    m.Name,
				Email:   m.Email,
				Role:    string(m.Role),
				IsOwner: m.UserID == org.OwnerID,
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": resp,
		})
	}
}

// HandleAddMember handles POST /api/v1/orgs/{org_id}/members
func HandleAddMember(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req AddMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" {
			apperrors.WriteBadRequest(w, r, "Email is required")
			return
		}

		membership, err := svc.AddMember(ctx, orgID, userID, req.Email, MemberRole(req.Role))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidOrgRole):
				apperrors.WriteBadRequest(w, r, "Invalid role")
			case errors.Is(err, ErrUserNotFound):
				apperrors.WriteNotFound(w, r, "No user with that email")
			case errors.Is(err, ErrMemberAlreadyExists):
				apperrors.WriteConflict(w, r, "User is already a member")
			default:
				writePolicyError(w, r, err, "Failed to add member")
			}
			return
		}

		if err := auditor.LogOrgMemberAdded(ctx, orgID, userID, membership.UserID, string(membership.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"member": map[string]any{
				"user_id": membership.UserID,
				"email":   req.Email,
				"role":    string(membership.Role),
			},
		})
	}
}

// HandleUpdateMemberRole handles PUT /api/v1/orgs/{org_id}/members/{user_id}
func HandleUpdateMemberRole(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}
		targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		var req UpdateMemberRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		previousRole, err := svc.UpdateMemberRole(ctx, orgID, userID, targetID, MemberRole(req.Role))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidOrgRole):
				apperrors.WriteBadRequest(w, r, "Invalid role")
			case errors.Is(err, ErrCannotModifyOwner):
				apperrors.WriteForbidden(w, r, "The owner's role cannot be changed")
			case errors.Is(err, ErrMemberNotFound):
				apperrors.WriteNotFound(w, r, "Member not found")
			default:
				writePolicyError(w, r, err, "Failed to update member role")
			}
			return
		}

		if err := auditor.LogOrgMemberRoleUpdated(ctx, orgID, userID, targetID, string(previousRole), req.Role); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id": targetID,
			"role":    req.Role,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/orgs/{org_id}/members/{user_id}.
// Removing a user who is not a member succeeds with removed=false.
func HandleRemoveMember(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}
		targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		removed, err := svc.RemoveMember(ctx, orgID, userID, targetID)
		if err != nil {
			if errors.Is(err, ErrCannotModifyOwner) {
				apperrors.WriteForbidden(w, r, "The owner cannot be removed")
				return
			}
			writePolicyError(w, r, err, "Failed to remove member")
			return
		}

		if removed {
			if err := auditor.LogOrgMemberRemoved(ctx, orgID, userID, targetID); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": removed,
		})
	}
}
