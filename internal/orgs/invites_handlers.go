package orgs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/audit"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rs/zerolog/log"
)

type CreateInviteRequest struct {
	Role          string  `json:"role"`
	ExpiresInDays *int    `json:"expires_in_days,omitempty"`
	MaxUses       *int    `json:"max_uses,omitempty"`
	Email         *string `json:"email,omitempty"`
}

type InviteResponse struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	Role      string    `json:"role"`
	Email     *string   `json:"email,omitempty"`
	MaxUses   *int      `json:"max_uses,omitempty"`
	UsesCount int       `json:"uses_count"`
	ExpiresAt *string   `json:"expires_at,omitempty"`
}

func inviteResponse(inv *Invitation, url string) InviteResponse {
	resp := InviteResponse{
		ID:        inv.ID,
		Token:     inv.Token,
		URL:       url,
		Role:      string(inv.Role),
		Email:     inv.Email,
		MaxUses:   inv.MaxUses,
		UsesCount: inv.UsesCount,
	}
	if inv.ExpiresAt != nil {
		formatted := inv.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ExpiresAt = &formatted
	}
	return resp
}

// HandleCreateInvite handles POST /api/v1/orgs/{org_id}/invites
func HandleCreateInvite(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req CreateInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		inv, url, err := svc.CreateInvite(ctx, orgID, userID, CreateInviteParams{
			Role:          MemberRole(req.Role),
			ExpiresInDays: req.ExpiresInDays,
			MaxUses:       req.MaxUses,
			Email:         req.Email,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidOrgRole):
				apperrors.WriteBadRequest(w, r, "Invalid role")
			case errors.Is(err, ErrInvalidInviteParams):
				apperrors.WriteBadRequest(w, r, "Invalid invitation parameters")
			case errors.Is(err, ErrMemberAlreadyExists):
				apperrors.WriteConflict(w, r, "That user is already a member")
			case errors.Is(err, ErrInvitationAlreadyExists):
				apperrors.WriteConflict(w, r, "An active invitation for that email already exists")
			default:
				writePolicyError(w, r, err, "Failed to create invitation")
			}
			return
		}

		if err := auditor.LogOrgInviteCreated(ctx, orgID, userID, inv.ID, string(inv.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"invite": inviteResponse(inv, url),
		})
	}
}

// HandleListInvites handles GET /api/v1/orgs/{org_id}/invites. Only
// invitations that can still be redeemed are returned.
func HandleListInvites(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		invites, err := svc.ListActiveInvites(ctx, orgID, userID)
		if err != nil {
			writePolicyError(w, r, err, "Failed to list invitations")
			return
		}

		type listEntry struct {
			InviteListItem
			URL string `json:"url"`
		}
		resp := make([]listEntry, len(invites))
		for i, item := range invites {
			resp[i] = listEntry{
				InviteListItem: item,
				URL:            svc.InviteURL(item.Token),
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invites": resp,
		})
	}
}

// HandleRevokeInvite handles DELETE /api/v1/orgs/{org_id}/invites/{invite_id}
func HandleRevokeInvite(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, ok := parseOrgID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}
		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		if err := svc.RevokeInvite(ctx, orgID, inviteID, userID); err != nil {
			if errors.Is(err, ErrInvitationNotFound) {
				apperrors.WriteNotFound(w, r, "Invitation not found")
				return
			}
			writePolicyError(w, r, err, "Failed to revoke invitation")
			return
		}

		if err := auditor.LogOrgInviteRevoked(ctx, orgID, userID, inviteID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"revoked": true,
		})
	}
}

// HandleShowInvite handles GET /api/v1/invites/{token}. It is reachable
// without a session so the signup page can describe the invitation. The
// token itself is the capability, so only coarse details are returned.
func HandleShowInvite(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := chi.URLParam(r, "token")
		if !ValidateInviteTokenFormat(token) {
			apperrors.WriteNotFound(w, r, "Invitation not found")
			return
		}

		inv, err := svc.GetInviteByToken(ctx, token)
		if err != nil {
			if errors.Is(err, ErrInvitationNotFound) {
				apperrors.WriteNotFound(w, r, "Invitation not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load invitation")
			apperrors.WriteInternalError(w, r, "Failed to load invitation")
			return
		}

		org, err := svc.GetByID(ctx, inv.OrgID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load invitation org")
			apperrors.WriteInternalError(w, r, "Failed to load invitation")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org_name": org.Name,
			"role":     string(inv.Role),
			"valid":    inv.IsValid(svc.Now()),
		})
	}
}

// HandleAcceptInvite handles POST /api/v1/invites/{token}/accept for an
// already signed-in user. New users redeem through signup instead.
func HandleAcceptInvite(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		token := chi.URLParam(r, "token")

		org, err := svc.RedeemInvite(ctx, token, userID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInvitation):
				apperrors.WriteConflict(w, r, "This invitation can no longer be used")
			default:
				log.Error().Err(err).Msg("Failed to accept invitation")
				apperrors.WriteInternalError(w, r, "Failed to accept invitation")
			}
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			OrgID:       &org.ID,
			ActorUserID: &userID,
			Action:      audit.EventOrgInviteRedeemed,
			Meta:        map[string]interface{}{"via": "accept"},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org": orgResponse(org),
		})
	}
}
