package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/audit"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rkwebforge/tracklet/internal/orgs"
)

type CreateRequest struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

func parseProjectID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "project_id"))
	return id, err == nil
}

// writeServiceError maps the service sentinels shared across handlers
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, orgs.ErrOrgNotFound), errors.Is(err, orgs.ErrNotMember):
		apperrors.WriteNotFound(w, r, "Project not found")
	case errors.Is(err, ErrInsufficientPermissions), errors.Is(err, orgs.ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	default:
		log.Error().Err(err).Msg(logMsg)
		apperrors.WriteInternalError(w, r, logMsg)
	}
}

// HandleCreate handles POST /api/v1/orgs/{org_id}/projects
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Project name is required")
			return
		}

		project, err := svc.Create(ctx, orgID, userID, req.Name, req.Key, req.Description)
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyConflict):
				apperrors.WriteConflict(w, r, "Project key is already in use")
			case errors.Is(err, ErrInvalidKey):
				apperrors.WriteBadRequest(w, r, err.Error())
			case errors.Is(err, orgs.ErrNotMember), errors.Is(err, orgs.ErrOrgNotFound):
				apperrors.WriteNotFound(w, r, "Organization not found")
			default:
				log.Error().Err(err).Msg("Failed to create project")
				apperrors.WriteInternalError(w, r, "Failed to create project")
			}
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			OrgID:       &orgID,
			ProjectID:   &project.ID,
			ActorUserID: &userID,
			Action:      audit.EventProjectCreated,
			Meta:        map[string]interface{}{"key": project.Key},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"project": project,
		})
	}
}

// HandleList handles GET /api/v1/orgs/{org_id}/projects
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		includeArchived := r.URL.Query().Get("include_archived") == "true"

		projects, err := svc.ListByOrg(ctx, orgID, userID, includeArchived)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list projects")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"projects": projects,
		})
	}
}

// HandleGet handles GET /api/v1/projects/{project_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		rel, err := svc.Relation(ctx, userID, projectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to load project")
			return
		}
		if !CanView(rel) {
			// Outsiders get a 404, not a 403
			apperrors.WriteNotFound(w, r, "Project not found")
			return
		}

		project, err := svc.GetByID(ctx, projectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to load project")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"project": project,
		})
	}
}

// HandleUpdate handles PUT /api/v1/projects/{project_id}
func HandleUpdate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Project name is required")
			return
		}

		project, err := svc.Update(ctx, userID, projectID, req.Name, req.Description, Status(req.Status))
		if err != nil {
			writeServiceError(w, r, err, "Failed to update project")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"project": project,
		})
	}
}

// HandleDelete handles DELETE /api/v1/projects/{project_id}
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		project, err := svc.GetByID(ctx, projectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to delete project")
			return
		}

		if err := svc.Delete(ctx, userID, projectID); err != nil {
			writeServiceError(w, r, err, "Failed to delete project")
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			OrgID:       &project.OrgID,
			ActorUserID: &userID,
			Action:      audit.EventProjectDeleted,
			Meta:        map[string]interface{}{"project_id": projectID.String(), "key": project.Key},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// HandleListMembers handles GET /api/v1/projects/{project_id}/members
func HandleListMembers(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		members, err := svc.ListMembers(ctx, userID, projectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list project members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}

// HandleAddMember handles POST /api/v1/projects/{project_id}/members
func HandleAddMember(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		var req AddMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.UserID == uuid.Nil {
			apperrors.WriteBadRequest(w, r, "user_id is required")
			return
		}

		membership, err := svc.AddMember(ctx, userID, projectID, req.UserID, ProjectRole(req.Role))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidProjectRole):
				apperrors.WriteBadRequest(w, r, "Invalid role")
			case errors.Is(err, ErrNotOrgMember):
				apperrors.WriteBadRequest(w, r, "User is not a member of the organization")
			case errors.Is(err, ErrMemberAlreadyExists):
				apperrors.WriteConflict(w, r, "User is already a project member")
			default:
				writeServiceError(w, r, err, "Failed to add project member")
			}
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"member": membership,
		})
	}
}

// HandleUpdateMemberRole handles PUT /api/v1/projects/{project_id}/members/{user_id}
func HandleUpdateMemberRole(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
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

		if err := svc.UpdateMemberRole(ctx, userID, projectID, targetID, ProjectRole(req.Role)); err != nil {
			switch {
			case errors.Is(err, ErrInvalidProjectRole):
				apperrors.WriteBadRequest(w, r, "Invalid role")
			case errors.Is(err, ErrMemberNotFound):
				apperrors.WriteNotFound(w, r, "Project member not found")
			default:
				writeServiceError(w, r, err, "Failed to update project member role")
			}
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id": targetID,
			"role":    req.Role,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/projects/{project_id}/members/{user_id}
func HandleRemoveMember(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, ok := parseProjectID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}
		targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		removed, err := svc.RemoveMember(ctx, userID, projectID, targetID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to remove project member")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": removed,
		})
	}
}
