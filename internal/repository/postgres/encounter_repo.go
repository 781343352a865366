package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
)

// EncounterRepo persists combat encounter aggregates across the
// encounters and encounter_combatants tables.
type EncounterRepo struct {
	db *sql.DB
}

// NewEncounterRepo creates an EncounterRepo.
func NewEncounterRepo(db *sql.DB) *EncounterRepo {
	return &EncounterRepo{db: db}
}

// Create inserts a new encounter with its full combatant roster.
func (r *EncounterRepo) Create(ctx context.Context, e *combat.Encounter) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO encounters (id, adventure_id, status, current_round, current_turn_index,
		                         initiative_order, winner, started_at, ended_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		e.ID, e.AdventureID, string(e.Status), e.CurrentRound, e.CurrentTurnIndex,
		pq.Array(e.InitiativeOrder), string(e.Winner), e.StartedAt, e.EndedAt, e.Version,
	)
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}

	for i, c := range e.Combatants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO encounter_combatants (id, encounter_id, position, display_name, combatant_type,
			                                   character_id, enemy_id, current_health, max_health, armor_class,
			                                   dexterity_modifier, attack_modifier, damage_modifier, initiative_roll,
			                                   status, ai_state, flee_threshold, resistance, weapon_name, weapon_damage,
			                                   defending, tie_break)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, '')::uuid, $8, $9, $10,
			         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
			c.ID, e.ID, i, c.DisplayName, string(c.Type),
			c.CharacterID, c.EnemyID, c.CurrentHealth, c.MaxHealth, c.ArmorClass,
			c.DexterityModifier, c.AttackModifier, c.DamageModifier, c.InitiativeRoll,
			string(c.Status), string(c.AIState), c.FleeThreshold, string(c.Resistance),
			c.Weapon.Name, c.Weapon.Damage, c.Defending, c.TieBreak,
		)
		if err != nil {
			return fmt.Errorf("insert combatant: %w", err)
		}
	}

	return tx.Commit()
}

// FindByID loads an encounter aggregate by ID, or nil if absent.
func (r *EncounterRepo) FindByID(ctx context.Context, id string) (*combat.Encounter, error) {
	var e combat.Encounter
	var status string
	var winner sql.NullString
	var order []string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, adventure_id, status, current_round, current_turn_index, initiative_order,
		        winner, started_at, ended_at, version
		 FROM encounters WHERE id = $1`, id,
	).Scan(&e.ID, &e.AdventureID, &status, &e.CurrentRound, &e.CurrentTurnIndex, pq.Array(&order),
		&winner, &e.StartedAt, &e.EndedAt, &e.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find encounter: %w", err)
	}
	e.Status = combat.EncounterStatus(status)
	e.Winner = combat.Winner(winner.String)
	e.InitiativeOrder = order

	combatants, err := r.loadCombatants(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Combatants = combatants
	return &e, nil
}

// FindActiveByAdventure returns the adventure's Active encounter, or nil
// if the adventure has no fight in progress.
func (r *EncounterRepo) FindActiveByAdventure(ctx context.Context, adventureID string) (*combat.Encounter, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM encounters
		 WHERE adventure_id = $1 AND status = 'Active'
		 ORDER BY started_at DESC LIMIT 1`, adventureID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active encounter: %w", err)
	}
	return r.FindByID(ctx, id)
}

// loadCombatants returns the roster in its original creation order.
func (r *EncounterRepo) loadCombatants(ctx context.Context, encounterID string) ([]*combat.Combatant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, combatant_type, character_id, enemy_id, current_health, max_health,
		        armor_class, dexterity_modifier, attack_modifier, damage_modifier, initiative_roll,
		        status, ai_state, flee_threshold, resistance, weapon_name, weapon_damage, defending, tie_break
		 FROM encounter_combatants WHERE encounter_id = $1 ORDER BY position`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("list combatants: %w", err)
	}
	defer rows.Close()

	var combatants []*combat.Combatant
	for rows.Next() {
		var c combat.Combatant
		var ctype, status, aiState, resistance string
		var characterID, enemyID sql.NullString
		if err := rows.Scan(&c.ID, &c.DisplayName, &ctype, &characterID, &enemyID, &c.CurrentHealth, &c.MaxHealth,
			&c.ArmorClass, &c.DexterityModifier, &c.AttackModifier, &c.DamageModifier, &c.InitiativeRoll,
			&status, &aiState, &c.FleeThreshold, &resistance, &c.Weapon.Name, &c.Weapon.Damage, &c.Defending, &c.TieBreak); err != nil {
			return nil, fmt.Errorf("scan combatant: %w", err)
		}
		c.Type = combat.CombatantType(ctype)
		c.CharacterID = characterID.String
		c.EnemyID = enemyID.String
		c.Status = combat.CombatantStatus(status)
		c.AIState = combat.AIState(aiState)
		c.Resistance = combat.Resistance(resistance)
		combatants = append(combatants, &c)
	}
	return combatants, rows.Err()
}

// Update saves the aggregate if the stored version still matches
// expectedVersion, bumping the version by one. A mismatch means another
// request saved first; the caller gets repository.ErrConflict and can
// reload and retry.
func (r *EncounterRepo) Update(ctx context.Context, e *combat.Encounter, expectedVersion int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE encounters
		 SET status = $1, current_round = $2, current_turn_index = $3, initiative_order = $4,
		     winner = NULLIF($5, ''), ended_at = $6, version = $7
		 WHERE id = $8 AND version = $9`,
		string(e.Status), e.CurrentRound, e.CurrentTurnIndex, pq.Array(e.InitiativeOrder),
		string(e.Winner), e.EndedAt, expectedVersion+1, e.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	if n == 0 {
		return repository.ErrConflict
	}

	for _, c := range e.Combatants {
		_, err = tx.ExecContext(ctx,
			`UPDATE encounter_combatants
			 SET current_health = $1, status = $2, ai_state = $3, defending = $4
			 WHERE id = $5 AND encounter_id = $6`,
			c.CurrentHealth, string(c.Status), string(c.AIState), c.Defending, c.ID, e.ID,
		)
		if err != nil {
			return fmt.Errorf("update combatant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit encounter update: %w", err)
	}
	e.Version = expectedVersion + 1
	return nil
}
