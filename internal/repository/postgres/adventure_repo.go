package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/natural-twenty/api/internal/model"
)

// AdventureRepo handles adventure database operations.
type AdventureRepo struct {
	db *sql.DB
}

// NewAdventureRepo creates an AdventureRepo.
func NewAdventureRepo(db *sql.DB) *AdventureRepo {
	return &AdventureRepo{db: db}
}

// Create inserts a new adventure in "active" status.
func (r *AdventureRepo) Create(ctx context.Context, userID, name, description string) (*model.Adventure, error) {
	var a model.Adventure
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO adventures (user_id, name, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, name, description, status, created_at, updated_at`,
		userID, name, description,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create adventure: %w", err)
	}
	return &a, nil
}

// FindByID returns an adventure by ID, or nil if absent.
func (r *AdventureRepo) FindByID(ctx context.Context, id string) (*model.Adventure, error) {
	var a model.Adventure
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, status, created_at, updated_at
		 FROM adventures WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find adventure: %w", err)
	}
	return &a, nil
}

// ListByUser returns a user's adventures, most recent first.
func (r *AdventureRepo) ListByUser(ctx context.Context, userID string) ([]model.Adventure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, status, created_at, updated_at
		 FROM adventures WHERE user_id = $1 ORDER BY created_at DESC LIMIT 50`, userID)
	if err != nil {
		return nil, fmt.Errorf("list adventures: %w", err)
	}
	defer rows.Close()

	var adventures []model.Adventure
	for rows.Next() {
		var a model.Adventure
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan adventure: %w", err)
		}
		adventures = append(adventures, a)
	}
	return adventures, rows.Err()
}

// SetStatus moves an adventure to active, completed, or abandoned.
func (r *AdventureRepo) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE adventures SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set adventure status: %w", err)
	}
	return nil
}

// Delete removes an adventure and all associated data (cascades to
// characters and encounters).
func (r *AdventureRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM adventures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete adventure: %w", err)
	}
	return nil
}
