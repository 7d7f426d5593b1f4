package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkwebforge/tracklet/internal/projects"
)

var (
	// ErrTaskNotFound is returned when a task doesn't exist
	ErrTaskNotFound = errors.New("task not found")

	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrInsufficientPermissions is returned when the actor's relation does
	// not allow the operation
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrEmptyTitle is returned when a task title is blank
	ErrEmptyTitle = errors.New("task title is required")

	// ErrEmptyComment is returned when a comment body is blank
	ErrEmptyComment = errors.New("comment body is required")
)

// Service provides task and comment operations. Project standing is
// resolved through the project service.
type Service struct {
	pool    *pgxpool.Pool
	projSvc *projects.Service
}

func NewService(pool *pgxpool.Pool, projSvc *projects.Service) *Service {
	return &Service{pool: pool, projSvc: projSvc}
}

const taskColumns = `id, project_id, board_column_id, title, description, status, priority, position, assignee_id, reporter_id, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.BoardColumnID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.Position,
		&t.AssigneeID,
		&t.ReporterID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Relation resolves the user's standing toward the task
func (s *Service) Relation(ctx context.Context, userID, taskID uuid.UUID) (Relation, *Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Relation{}, nil, ErrTaskNotFound
		}
		return Relation{}, nil, fmt.Errorf("failed to get task: %w", err)
	}

	projRel, err := s.projSvc.Relation(ctx, userID, task.ProjectID)
	if err != nil {
		return Relation{}, nil, err
	}

	rel := Relation{
		IsAssignee: task.AssigneeID.Valid && task.AssigneeID.UUID == userID,
		IsReporter: task.ReporterID == userID,
		Project:    projRel,
	}
	return rel, task, nil
}

// CreateParams are the caller-supplied attributes for a new task
type CreateParams struct {
	Title         string
	Description   string
	Priority      Priority
	BoardColumnID *uuid.UUID
	AssigneeID    *uuid.UUID
}

// Create inserts a task with the actor as reporter
func (s *Service) Create(ctx context.Context, userID, projectID uuid.UUID, params CreateParams) (*Task, error) {
	projRel, err := s.projSvc.Relation(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !CanCreate(projRel) {
		return nil, ErrInsufficientPermissions
	}

	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, ErrEmptyTitle
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}
	if !params.Priority.IsValid() {
		return nil, ErrInvalidPriority
	}

	var columnID, assigneeID uuid.NullUUID
	if params.BoardColumnID != nil {
		columnID = uuid.NullUUID{UUID: *params.BoardColumnID, Valid: true}
	}
	if params.AssigneeID != nil {
		assigneeID = uuid.NullUUID{UUID: *params.AssigneeID, Valid: true}
	}

	// New tasks go to the end of their column
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (project_id, board_column_id, title, description, priority, assignee_id, reporter_id, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE project_id = $1 AND board_column_id IS NOT DISTINCT FROM $2))
		RETURNING `+taskColumns+`
	`, projectID, columnID, params.Title, params.Description, params.Priority, assigneeID, userID)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// ListByProject returns the project's tasks ordered by column position
func (s *Service) ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]Task, error) {
	projRel, err := s.projSvc.Relation(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !projects.CanView(projRel) {
		return nil, ErrInsufficientPermissions
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = $1
		ORDER BY board_column_id NULLS LAST, position ASC, created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateParams carries the mutable task attributes. Nil pointers leave the
// current value untouched.
type UpdateParams struct {
	Title         *string
	Description   *string
	Status        *Status
	Priority      *Priority
	BoardColumnID *uuid.UUID
	Position      *int
}

// Update modifies a task's attributes
func (s *Service) Update(ctx context.Context, userID, taskID uuid.UUID, params UpdateParams) (*Task, error) {
	rel, task, err := s.Relation(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !CanUpdate(rel) {
		return nil, ErrInsufficientPermissions
	}

	if params.Title != nil {
		trimmed := strings.TrimSpace(*params.Title)
		if trimmed == "" {
			return nil, ErrEmptyTitle
		}
		task.Title = trimmed
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.Status != nil {
		if !params.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		task.Status = *params.Status
	}
	if params.Priority != nil {
		if !params.Priority.IsValid() {
			return nil, ErrInvalidPriority
		}
		task.Priority = *params.Priority
	}
	if params.BoardColumnID != nil {
		task.BoardColumnID = uuid.NullUUID{UUID: *params.BoardColumnID, Valid: true}
	}
	if params.Position != nil {
		task.Position = *params.Position
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5,
		    board_column_id = $6, position = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns+`
	`, taskID, task.Title, task.Description, task.Status, task.Priority, task.BoardColumnID, task.Position)

	updated, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return updated, nil
}

// Delete removes a task
func (s *Service) Delete(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	rel, task, err := s.Relation(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !CanDelete(rel) {
		return nil, ErrInsufficientPermissions
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Assign sets or clears the task's assignee. A nil assigneeID unassigns.
func (s *Service) Assign(ctx context.Context, userID, taskID uuid.UUID, assigneeID *uuid.UUID) (*Task, error) {
	rel, _, err := s.Relation(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !CanAssign(rel) {
		return nil, ErrInsufficientPermissions
	}

	var target uuid.NullUUID
	if assigneeID != nil {
		target = uuid.NullUUID{UUID: *assigneeID, Valid: true}
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE tasks
		SET assignee_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns+`
	`, taskID, target)

	updated, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	return updated, nil
}

// AddComment appends a comment to the task
func (s *Service) AddComment(ctx context.Context, userID, taskID uuid.UUID, body string) (*Comment, error) {
	rel, _, err := s.Relation(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !CanComment(rel) {
		return nil, ErrInsufficientPermissions
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyComment
	}

	var c Comment
	err = s.pool.QueryRow(ctx, `
		INSERT INTO task_comments (task_id, user_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, task_id, user_id, body, created_at
	`, taskID, userID, body).Scan(&c.ID, &c.TaskID, &c.UserID, &c.Body, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &c, nil
}

// ListComments returns the task's comments oldest first
func (s *Service) ListComments(ctx context.Context, userID, taskID uuid.UUID) ([]CommentInfo, error) {
	rel, _, err := s.Relation(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !CanView(rel) {
		return nil, ErrInsufficientPermissions
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.task_id, c.user_id, c.body, c.created_at, u.name
		FROM task_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.task_id = $1
		ORDER BY c.created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []CommentInfo
	for rows.Next() {
		var c CommentInfo
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Body, &c.CreatedAt, &c.AuthorName); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
