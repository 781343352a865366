package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/natural-twenty/api/internal/model"
)

// CharacterRepo handles character sheet database operations.
type CharacterRepo struct {
	db *sql.DB
}

// NewCharacterRepo creates a CharacterRepo.
func NewCharacterRepo(db *sql.DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

const characterColumns = `id, adventure_id, name, class, level, max_health, current_health, armor_class,
	        strength, dexterity, constitution, intelligence, wisdom, charisma, weapon, created_at, updated_at`

func scanCharacter(row interface{ Scan(dest ...any) error }) (*model.Character, error) {
	var c model.Character
	err := row.Scan(&c.ID, &c.AdventureID, &c.Name, &c.Class, &c.Level, &c.MaxHealth, &c.CurrentHealth, &c.ArmorClass,
		&c.Strength, &c.Dexterity, &c.Constitution, &c.Intelligence, &c.Wisdom, &c.Charisma, &c.Weapon, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new character sheet at full health.
func (r *CharacterRepo) Create(ctx context.Context, c *model.Character) (*model.Character, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO characters (adventure_id, name, class, level, max_health, current_health, armor_class,
		                         strength, dexterity, constitution, intelligence, wisdom, charisma, weapon)
		 VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+characterColumns,
		c.AdventureID, c.Name, c.Class, c.Level, c.MaxHealth, c.ArmorClass,
		c.Strength, c.Dexterity, c.Constitution, c.Intelligence, c.Wisdom, c.Charisma, c.Weapon,
	)
	created, err := scanCharacter(row)
	if err != nil {
		return nil, fmt.Errorf("create character: %w", err)
	}
	return created, nil
}

// FindByID returns a character by ID, or nil if absent.
func (r *CharacterRepo) FindByID(ctx context.Context, id string) (*model.Character, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = $1`, id)
	c, err := scanCharacter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find character: %w", err)
	}
	return c, nil
}

// FindByIDs returns the characters for the given ids, in no particular
// order. Missing ids are simply absent from the result.
func (r *CharacterRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find characters: %w", err)
	}
	defer rows.Close()

	var characters []model.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		characters = append(characters, *c)
	}
	return characters, rows.Err()
}

// ListByAdventure returns all characters in an adventure.
func (r *CharacterRepo) ListByAdventure(ctx context.Context, adventureID string) ([]model.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE adventure_id = $1 ORDER BY created_at`, adventureID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var characters []model.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		characters = append(characters, *c)
	}
	return characters, rows.Err()
}

// UpdateHealth persists a character's current health after combat.
func (r *CharacterRepo) UpdateHealth(ctx context.Context, id string, currentHealth int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE characters SET current_health = $1, updated_at = now() WHERE id = $2`,
		currentHealth, id,
	)
	if err != nil {
		return fmt.Errorf("update character health: %w", err)
	}
	return nil
}

// Delete removes a character sheet.
func (r *CharacterRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return nil
}
