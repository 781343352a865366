package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
)

// ErrConflict reports an optimistic-concurrency version mismatch when
// saving an encounter. Callers reload and retry.
var ErrConflict = errors.New("encounter version conflict")

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// AdventureRepository defines adventure data operations.
type AdventureRepository interface {
	Create(ctx context.Context, userID, name, description string) (*model.Adventure, error)
	FindByID(ctx context.Context, id string) (*model.Adventure, error)
	ListByUser(ctx context.Context, userID string) ([]model.Adventure, error)
	SetStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// CharacterRepository defines character sheet operations.
type CharacterRepository interface {
	Create(ctx context.Context, c *model.Character) (*model.Character, error)
	FindByID(ctx context.Context, id string) (*model.Character, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Character, error)
	ListByAdventure(ctx context.Context, adventureID string) ([]model.Character, error)
	UpdateHealth(ctx context.Context, id string, currentHealth int) error
	Delete(ctx context.Context, id string) error
}

// EnemyRepository defines enemy stat block operations.
type EnemyRepository interface {
	Create(ctx context.Context, e *model.Enemy) (*model.Enemy, error)
	FindByID(ctx context.Context, id string) (*model.Enemy, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Enemy, error)
	List(ctx context.Context) ([]model.Enemy, error)
}

// EncounterRepository persists combat encounter aggregates. Update
// compares the stored version against expectedVersion and returns
// ErrConflict on mismatch; on success the aggregate's version is
// expectedVersion+1.
type EncounterRepository interface {
	Create(ctx context.Context, e *combat.Encounter) error
	FindByID(ctx context.Context, id string) (*combat.Encounter, error)
	FindActiveByAdventure(ctx context.Context, adventureID string) (*combat.Encounter, error)
	Update(ctx context.Context, e *combat.Encounter, expectedVersion int) error
}

// CombatCache defines hot combat state operations (Redis).
type CombatCache interface {
	SetSnapshot(ctx context.Context, encounterID string, snapshot json.RawMessage) error
	GetSnapshot(ctx context.Context, encounterID string) (json.RawMessage, error)
	DeleteSnapshot(ctx context.Context, encounterID string) error
	PushRoll(ctx context.Context, adventureID string, roll json.RawMessage) error
	RecentRolls(ctx context.Context, adventureID string, limit int64) ([]json.RawMessage, error)
}
