// Package combat implements the turn-based combat rules: combatants,
// initiative ordering, attack and damage resolution, the enemy stance
// machine, and the encounter aggregate that ties them together. Every
// random decision flows through the dice package so a seeded source
// reproduces a whole fight.
package combat

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation reports inputs that violate the combat model's
	// invariants.
	ErrValidation = errors.New("combat validation failed")
	// ErrInvalidState reports an operation not permitted in the
	// encounter's current status.
	ErrInvalidState = errors.New("invalid encounter state")
	// ErrInvalidTarget reports an action against a combatant that cannot
	// receive it.
	ErrInvalidTarget = errors.New("invalid target")
)

// EncounterStatus is the lifecycle phase of an encounter.
type EncounterStatus string

const (
	EncounterNotStarted EncounterStatus = "NotStarted"
	EncounterActive     EncounterStatus = "Active"
	EncounterCompleted  EncounterStatus = "Completed"
)

// Winner is the outcome of a completed encounter. Empty means the fight
// is still undecided.
type Winner string

const (
	WinnerPlayer Winner = "Player"
	WinnerEnemy  Winner = "Enemy"
	WinnerDraw   Winner = "Draw"
)

// Encounter is the combat aggregate root: the combatants, the initiative
// order, and the turn/round state machine. Status only moves forward:
// NotStarted, then Active, then Completed.
type Encounter struct {
	ID               string
	AdventureID      string
	Combatants       []*Combatant
	InitiativeOrder  []string
	CurrentTurnIndex int
	CurrentRound     int
	Status           EncounterStatus
	Winner           Winner // set when Completed
	StartedAt        time.Time
	EndedAt          *time.Time
	// Version is the optimistic-concurrency counter bumped by every
	// successful save.
	Version int
}

// NewEncounter validates the lineup and builds a NotStarted encounter.
// At least one character and one enemy must be present and combatant ids
// must be unique.
func NewEncounter(id, adventureID string, combatants []*Combatant) (*Encounter, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: encounter id is required", ErrValidation)
	}
	if adventureID == "" {
		return nil, fmt.Errorf("%w: adventure id is required", ErrValidation)
	}

	characters, enemies := 0, 0
	seen := make(map[string]bool, len(combatants))
	for _, c := range combatants {
		if c == nil {
			return nil, fmt.Errorf("%w: nil combatant", ErrValidation)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate combatant id %s", ErrValidation, c.ID)
		}
		seen[c.ID] = true
		switch c.Type {
		case TypeCharacter:
			characters++
		case TypeEnemy:
			enemies++
		default:
			return nil, fmt.Errorf("%w: unknown combatant type %q", ErrValidation, c.Type)
		}
	}
	if characters == 0 {
		return nil, fmt.Errorf("%w: encounter needs at least one character", ErrValidation)
	}
	if enemies == 0 {
		return nil, fmt.Errorf("%w: encounter needs at least one enemy", ErrValidation)
	}

	return &Encounter{
		ID:               id,
		AdventureID:      adventureID,
		Combatants:       combatants,
		CurrentTurnIndex: 0,
		CurrentRound:     1,
		Status:           EncounterNotStarted,
		StartedAt:        time.Now().UTC(),
		Version:          1,
	}, nil
}

// StartCombat records the initiative order and activates the encounter.
// The order must be a permutation of the combatant ids.
func (e *Encounter) StartCombat(order []string) error {
	if e.Status != EncounterNotStarted {
		return fmt.Errorf("%w: combat already started", ErrInvalidState)
	}
	if !e.coversAllCombatants(order) {
		return fmt.Errorf("%w: initiative order must list every combatant exactly once", ErrValidation)
	}
	e.InitiativeOrder = append([]string(nil), order...)
	e.Status = EncounterActive
	return nil
}

// coversAllCombatants checks that order is a permutation of the roster.
func (e *Encounter) coversAllCombatants(order []string) bool {
	if len(order) != len(e.Combatants) {
		return false
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] || e.CombatantByID(id) == nil {
			return false
		}
		seen[id] = true
	}
	return true
}

// CombatantByID returns the combatant with the given id, or nil.
func (e *Encounter) CombatantByID(id string) *Combatant {
	for _, c := range e.Combatants {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CurrentCombatant returns the combatant whose turn it is, or nil when
// the encounter is not active.
func (e *Encounter) CurrentCombatant() *Combatant {
	if e.Status != EncounterActive || len(e.InitiativeOrder) == 0 {
		return nil
	}
	return e.CombatantByID(e.InitiativeOrder[e.CurrentTurnIndex])
}

// AdvanceToNextTurn moves the turn pointer to the next Active combatant,
// wrapping into a new round at the end of the order and skipping Defeated
// and Fled combatants. The round counter increments once per wrap even
// when the skip crosses the boundary. If a full cycle finds nobody
// Active the pointer stops where it started and end detection decides
// the outcome. Landing on a combatant starts its turn, which drops any
// defending stance it held.
func (e *Encounter) AdvanceToNextTurn() error {
	if e.Status != EncounterActive {
		return fmt.Errorf("%w: encounter is not active", ErrInvalidState)
	}
	for i := 0; i < len(e.InitiativeOrder); i++ {
		e.CurrentTurnIndex++
		if e.CurrentTurnIndex >= len(e.InitiativeOrder) {
			e.CurrentTurnIndex = 0
			e.CurrentRound++
		}
		c := e.CombatantByID(e.InitiativeOrder[e.CurrentTurnIndex])
		if c != nil && c.IsActive() {
			c.Defending = false
			return nil
		}
	}
	return nil
}

// CheckCombatEnd inspects both sides. It returns the winner when the
// fight is over: Player when no enemy can act, Enemy when no character
// can, Draw when nobody can. While the fight continues it returns the
// empty Winner.
func (e *Encounter) CheckCombatEnd() Winner {
	activeCharacters, activeEnemies := 0, 0
	for _, c := range e.Combatants {
		if !c.IsActive() {
			continue
		}
		if c.Type == TypeCharacter {
			activeCharacters++
		} else {
			activeEnemies++
		}
	}
	switch {
	case activeCharacters == 0 && activeEnemies == 0:
		return WinnerDraw
	case activeEnemies == 0:
		return WinnerPlayer
	case activeCharacters == 0:
		return WinnerEnemy
	}
	return ""
}

// EndCombat completes the encounter with the given winner. Calling it
// again with the same winner is a no-op; a different winner is an error,
// as is ending a fight that never started.
func (e *Encounter) EndCombat(winner Winner) error {
	if e.Status == EncounterNotStarted {
		return fmt.Errorf("%w: combat never started", ErrInvalidState)
	}
	if e.Status == EncounterCompleted {
		if e.Winner == winner {
			return nil
		}
		return fmt.Errorf("%w: combat already ended with winner %s", ErrInvalidState, e.Winner)
	}
	switch winner {
	case WinnerPlayer, WinnerEnemy, WinnerDraw:
	default:
		return fmt.Errorf("%w: unknown winner %q", ErrValidation, winner)
	}
	now := time.Now().UTC()
	e.Status = EncounterCompleted
	e.Winner = winner
	e.EndedAt = &now
	return nil
}

// ActiveCombatants counts combatants still standing on either side.
func (e *Encounter) ActiveCombatants() int {
	n := 0
	for _, c := range e.Combatants {
		if c.IsActive() {
			n++
		}
	}
	return n
}

// Opponents returns every combatant on the other side from c, regardless
// of status.
func (e *Encounter) Opponents(c *Combatant) []*Combatant {
	var out []*Combatant
	for _, o := range e.Combatants {
		if o.OpposedTo(c) {
			out = append(out, o)
		}
	}
	return out
}
