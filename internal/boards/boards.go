package boards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkwebforge/tracklet/internal/projects"
)

var (
	ErrBoardNotFound  = errors.New("board not found")
	ErrColumnNotFound = errors.New("board column not found")
	ErrEmptyName      = errors.New("name is required")

	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// Board groups a project's tasks into columns
type Board struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Column struct {
	ID       uuid.UUID `json:"id"`
	BoardID  uuid.UUID `json:"board_id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

// BoardWithColumns is a board resolved with its ordered columns
type BoardWithColumns struct {
	Board
	Columns []Column `json:"columns"`
}

// Service provides board and column operations. Viewing follows the
// project's view policy; any change follows the project's update policy.
type Service struct {
	pool    *pgxpool.Pool
	projSvc *projects.Service
}

func NewService(pool *pgxpool.Pool, projSvc *projects.Service) *Service {
	return &Service{pool: pool, projSvc: projSvc}
}

func (s *Service) requireProject(ctx context.Context, userID, projectID uuid.UUID, write bool) error {
	rel, err := s.projSvc.Relation(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if write && !projects.CanUpdate(rel) {
		return ErrInsufficientPermissions
	}
	if !write && !projects.CanView(rel) {
		return ErrInsufficientPermissions
	}
	return nil
}

// defaultColumns seed every new board
var defaultColumns = []string{"To Do", "In Progress", "Review", "Done"}

// Create inserts a board with the standard starter columns in one
// transaction
func (s *Service) Create(ctx context.Context, userID, projectID uuid.UUID, name string) (*BoardWithColumns, error) {
	if err := s.requireProject(ctx, userID, projectID, true); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var board Board
	err = tx.QueryRow(ctx, `
		INSERT INTO boards (project_id, name)
		VALUES ($1, $2)
		RETURNING id, project_id, name, created_at
	`, projectID, name).Scan(&board.ID, &board.ProjectID, &board.Name, &board.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	columns := make([]Column, 0, len(defaultColumns))
	for i, colName := range defaultColumns {
		var col Column
		err = tx.QueryRow(ctx, `
			INSERT INTO board_columns (board_id, name, position)
			VALUES ($1, $2, $3)
			RETURNING id, board_id, name, position
		`, board.ID, colName, i).Scan(&col.ID, &col.BoardID, &col.Name, &col.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to create board column: %w", err)
		}
		columns = append(columns, col)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &BoardWithColumns{Board: board, Columns: columns}, nil
}

// Get returns a board with its columns
func (s *Service) Get(ctx context.Context, userID, boardID uuid.UUID) (*BoardWithColumns, error) {
	var board Board
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, name, created_at FROM boards WHERE id = $1
	`, boardID).Scan(&board.ID, &board.ProjectID, &board.Name, &board.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}

	if err := s.requireProject(ctx, userID, board.ProjectID, false); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, board_id, name, position
		FROM board_columns
		WHERE board_id = $1
		ORDER BY position ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list board columns: %w", err)
	}
	defer rows.Close()

	result := BoardWithColumns{Board: board, Columns: []Column{}}
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.ID, &col.BoardID, &col.Name, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan board column: %w", err)
		}
		result.Columns = append(result.Columns, col)
	}
	return &result, rows.Err()
}

// ListByProject returns the project's boards
func (s *Service) ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]Board, error) {
	if err := s.requireProject(ctx, userID, projectID, false); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, name, created_at
		FROM boards
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// Delete removes a board; its columns cascade and tasks fall back to no
// column
func (s *Service) Delete(ctx context.Context, userID, boardID uuid.UUID) error {
	var projectID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT project_id FROM boards WHERE id = $1`, boardID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBoardNotFound
		}
		return fmt.Errorf("failed to get board: %w", err)
	}

	if err := s.requireProject(ctx, userID, projectID, true); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, boardID); err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return nil
}

// AddColumn appends a column at the end of the board
func (s *Service) AddColumn(ctx context.Context, userID, boardID uuid.UUID, name string) (*Column, error) {
	var projectID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT project_id FROM boards WHERE id = $1`, boardID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}

	if err := s.requireProject(ctx, userID, projectID, true); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var col Column
	err = s.pool.QueryRow(ctx, `
		INSERT INTO board_columns (board_id, name, position)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM board_columns WHERE board_id = $1))
		RETURNING id, board_id, name, position
	`, boardID, name).Scan(&col.ID, &col.BoardID, &col.Name, &col.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to add board column: %w", err)
	}
	return &col, nil
}

// RemoveColumn deletes a column; tasks in it fall back to no column
func (s *Service) RemoveColumn(ctx context.Context, userID, columnID uuid.UUID) error {
	var projectID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT b.project_id
		FROM board_columns c
		JOIN boards b ON b.id = c.board_id
		WHERE c.id = $1
	`, columnID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrColumnNotFound
		}
		return fmt.Errorf("failed to get board column: %w", err)
	}

	if err := s.requireProject(ctx, userID, projectID, true); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM board_columns WHERE id = $1`, columnID); err != nil {
		return fmt.Errorf("failed to remove board column: %w", err)
	}
	return nil
}
