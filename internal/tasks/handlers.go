package tasks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/audit"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/projects"
)

type CreateRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      string     `json:"priority"`
	BoardColumnID *uuid.UUID `json:"board_column_id,omitempty"`
	AssigneeID    *uuid.UUID `json:"assignee_id,omitempty"`
}

type UpdateRequest struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	BoardColumnID *uuid.UUID `json:"board_column_id,omitempty"`
	Position      *int       `json:"position,omitempty"`
}

type AssignRequest struct {
	AssigneeID *uuid.UUID `json:"assignee_id"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

func parseTaskID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "task_id"))
	return id, err == nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, projects.ErrProjectNotFound),
		errors.Is(err, orgs.ErrOrgNotFound):
		apperrors.WriteNotFound(w, r, "Task not found")
	case errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrEmptyTitle), errors.Is(err, ErrEmptyComment),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidPriority):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		log.Error().Err(err).Msg(logMsg)
		apperrors.WriteInternalError(w, r, logMsg)
	}
}

// HandleCreate handles POST /api/v1/projects/{project_id}/tasks
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
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

		task, err := svc.Create(ctx, userID, projectID, CreateParams{
			Title:         req.Title,
			Description:   req.Description,
			Priority:      Priority(req.Priority),
			BoardColumnID: req.BoardColumnID,
			AssigneeID:    req.AssigneeID,
		})
		if err != nil {
			writeServiceError(w, r, err, "Failed to create task")
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			ProjectID:   &projectID,
			ActorUserID: &userID,
			Action:      audit.EventTaskCreated,
			Meta:        map[string]interface{}{"task_id": task.ID.String()},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"task": task,
		})
	}
}

// HandleList handles GET /api/v1/projects/{project_id}/tasks
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		projectID, err := uuid.Parse(chi.URLParam(r, "project_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		tasks, err := svc.ListByProject(ctx, userID, projectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list tasks")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"tasks": tasks,
		})
	}
}

// HandleGet handles GET /api/v1/tasks/{task_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		taskID, ok := parseTaskID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid task ID")
			return
		}

		rel, task, err := svc.Relation(ctx, userID, taskID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to load task")
			return
		}
		if !CanView(rel) {
			apperrors.WriteNotFound(w, r, "Task not found")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"task": task,
		})
	}
}

// HandleUpdate handles PUT /api/v1/tasks/{task_id}
func HandleUpdate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		taskID, ok := parseTaskID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid task ID")
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		params := UpdateParams{
			Title:         req.Title,
			Description:   req.Description,
			BoardColumnID: req.BoardColumnID,
			Position:      req.Position,
		}
		if req.Status != nil {
			status := Status(*req.Status)
			params.Status = &status
		}
		if req.Priority != nil {
			priority := Priority(*req.Priority)
			params.Priority = &priority
		}

		task, err := svc.Update(ctx, userID, taskID, params)
		if err != nil {
			writeServiceError(w, r, err, "Failed to update task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"task": task,
		})
	}
}

// HandleDelete handles DELETE /api/v1/tasks/{task_id}
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		taskID, ok := parseTaskID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid task ID")
			return
		}

		task, err := svc.Delete(ctx, userID, taskID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to delete task")
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			ProjectID:   &task.ProjectID,
			ActorUserID: &userID,
			Action:      audit.EventTaskDeleted,
			Meta:        map[string]interface{}{"task_id": taskID.String()},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// HandleAssign handles PUT /api/v1/tasks/{task_id}/assignee. A null
// assignee_id unassigns the task.
func HandleAssign(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		taskID, ok := parseTaskID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid task ID")
			return
		}

		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		task, err := svc.Assign(ctx, userID, taskID, req.AssigneeID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to assign task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"task": task,
		})
	}
}

// HandleAddComment handles POST /api/v1/tasks/{task_id}/comments
func HandleAddComment(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		taskID, ok := parseTaskID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid task ID")
			return
		}

		var req CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		comment, err := svc.AddComment(ctx, userID, taskID, req.Body)
		if err != nil {
			writeServiceError(w, r, err, "Failed to add comment")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"comment": comment,
		})
	}
}

// HandleListComments handles GET /api/v1/tasks/{task_id}/comments
func HandleListComments(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		taskID, ok := parseTaskID(r)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid task ID")
			return
		}

		comments, err := svc.ListComments(ctx, userID, taskID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list comments")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"comments": comments,
		})
	}
}
