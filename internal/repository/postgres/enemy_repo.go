package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/natural-twenty/api/internal/model"
)

// EnemyRepo handles enemy stat block database operations.
type EnemyRepo struct {
	db *sql.DB
}

// NewEnemyRepo creates an EnemyRepo.
func NewEnemyRepo(db *sql.DB) *EnemyRepo {
	return &EnemyRepo{db: db}
}

// Create inserts a new enemy stat block.
func (r *EnemyRepo) Create(ctx context.Context, e *model.Enemy) (*model.Enemy, error) {
	resistance := e.Resistance
	if resistance == "" {
		resistance = "none"
	}
	var created model.Enemy
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO enemies (name, max_health, armor_class, strength, dexterity, weapon,
		                      flee_threshold, resistance, challenge_rating)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, name, max_health, armor_class, strength, dexterity, weapon, flee_threshold, resistance, challenge_rating`,
		e.Name, e.MaxHealth, e.ArmorClass, e.Strength, e.Dexterity, e.Weapon,
		e.FleeThreshold, resistance, e.ChallengeRating,
	).Scan(&created.ID, &created.Name, &created.MaxHealth, &created.ArmorClass, &created.Strength, &created.Dexterity,
		&created.Weapon, &created.FleeThreshold, &created.Resistance, &created.ChallengeRating)
	if err != nil {
		return nil, fmt.Errorf("create enemy: %w", err)
	}
	return &created, nil
}

// FindByID returns an enemy by ID, or nil if absent.
func (r *EnemyRepo) FindByID(ctx context.Context, id string) (*model.Enemy, error) {
	var e model.Enemy
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, max_health, armor_class, strength, dexterity, weapon, flee_threshold, resistance, challenge_rating
		 FROM enemies WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.MaxHealth, &e.ArmorClass, &e.Strength, &e.Dexterity,
		&e.Weapon, &e.FleeThreshold, &e.Resistance, &e.ChallengeRating)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find enemy: %w", err)
	}
	return &e, nil
}

// FindByIDs returns the enemies for the given ids. Missing ids are
// simply absent from the result.
func (r *EnemyRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Enemy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, max_health, armor_class, strength, dexterity, weapon, flee_threshold, resistance, challenge_rating
		 FROM enemies WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find enemies: %w", err)
	}
	defer rows.Close()

	var enemies []model.Enemy
	for rows.Next() {
		var e model.Enemy
		if err := rows.Scan(&e.ID, &e.Name, &e.MaxHealth, &e.ArmorClass, &e.Strength, &e.Dexterity,
			&e.Weapon, &e.FleeThreshold, &e.Resistance, &e.ChallengeRating); err != nil {
			return nil, fmt.Errorf("scan enemy: %w", err)
		}
		enemies = append(enemies, e)
	}
	return enemies, rows.Err()
}

// List returns the full bestiary ordered by challenge rating.
func (r *EnemyRepo) List(ctx context.Context) ([]model.Enemy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, max_health, armor_class, strength, dexterity, weapon, flee_threshold, resistance, challenge_rating
		 FROM enemies ORDER BY challenge_rating, name`)
	if err != nil {
		return nil, fmt.Errorf("list enemies: %w", err)
	}
	defer rows.Close()

	var enemies []model.Enemy
	for rows.Next() {
		var e model.Enemy
		if err := rows.Scan(&e.ID, &e.Name, &e.MaxHealth, &e.ArmorClass, &e.Strength, &e.Dexterity,
			&e.Weapon, &e.FleeThreshold, &e.Resistance, &e.ChallengeRating); err != nil {
			return nil, fmt.Errorf("scan enemy: %w", err)
		}
		enemies = append(enemies, e)
	}
	return enemies, rows.Err()
}
