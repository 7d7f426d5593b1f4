package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/rkwebforge/tracklet/internal/projects"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task represents a work item on a project board
type Task struct {
	ID            uuid.UUID     `json:"id"`
	ProjectID     uuid.UUID     `json:"project_id"`
	BoardColumnID uuid.NullUUID `json:"board_column_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Status        Status        `json:"status"`
	Priority      Priority      `json:"priority"`
	Position      int           `json:"position"`
	AssigneeID    uuid.NullUUID `json:"assignee_id"`
	ReporterID    uuid.UUID     `json:"reporter_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Comment is a note left on a task
type Comment struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	UserID    uuid.UUID `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentInfo is a comment resolved with its author
type CommentInfo struct {
	Comment
	AuthorName string `json:"author_name"`
}

// Relation is a user's resolved standing toward a task: direct involvement
// plus their standing toward the parent project. Task privilege is derived
// transitively, task → project → organization.
type Relation struct {
	IsAssignee bool
	IsReporter bool
	Project    projects.Relation
}
