package boards

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/projects"
)

type CreateRequest struct {
	Name string `json:"name"`
}

type AddColumnRequest struct {
	Name string `json:"name"`
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrBoardNotFound),
		errors.Is(err, ErrColumnNotFound),
		errors.Is(err, projects.ErrProjectNotFound),
		errors.Is(err, orgs.ErrOrgNotFound):
		apperrors.WriteNotFound(w, r, "Not found")
	case errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrEmptyName):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		log.Error().Err(err).Msg(logMsg)
		apperrors.WriteInternalError(w, r, logMsg)
	}
}

// HandleCreate handles POST /api/v1/projects/{project_id}/boards
func HandleCreate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, err := uuid.Parse(chi.URLParam(r, "project_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		board, err := svc.Create(ctx, userID, projectID, req.Name)
		if err != nil {
			writeServiceError(w, r, err, "Failed to create board")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"board": board,
		})
	}
}

// HandleList handles GET /api/v1/projects/{project_id}/boards
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, err := uuid.Parse(chi.URLParam(r, "project_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		boards, err := svc.ListByProject(ctx, userID, projectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list boards")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"boards": boards,
		})
	}
}

// HandleGet handles GET /api/v1/boards/{board_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		boardID, err := uuid.Parse(chi.URLParam(r, "board_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid board ID")
			return
		}

		board, err := svc.Get(ctx, userID, boardID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to get board")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"board": board,
		})
	}
}

// HandleDelete handles DELETE /api/v1/boards/{board_id}
func HandleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		boardID, err := uuid.Parse(chi.URLParam(r, "board_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid board ID")
			return
		}

		if err := svc.Delete(ctx, userID, boardID); err != nil {
			writeServiceError(w, r, err, "Failed to delete board")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// HandleAddColumn handles POST /api/v1/boards/{board_id}/columns
func HandleAddColumn(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		boardID, err := uuid.Parse(chi.URLParam(r, "board_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid board ID")
			return
		}

		var req AddColumnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		column, err := svc.AddColumn(ctx, userID, boardID, req.Name)
		if err != nil {
			writeServiceError(w, r, err, "Failed to add column")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"column": column,
		})
	}
}

// HandleRemoveColumn handles DELETE /api/v1/boards/columns/{column_id}
func HandleRemoveColumn(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		columnID, err := uuid.Parse(chi.URLParam(r, "column_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid column ID")
			return
		}

		if err := svc.RemoveColumn(ctx, userID, columnID); err != nil {
			writeServiceError(w, r, err, "Failed to remove column")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}
