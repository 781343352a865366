package model

import (
	"time"

	"github.com/freeeve/natural-twenty/api/pkg/combat"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// RollView is the wire shape of a dice roll result.
type RollView struct {
	Expression       string           `json:"expression"`
	IndividualRolls  []int            `json:"individual_rolls"`
	RollsByGroup     map[string][]int `json:"rolls_by_group"`
	SubtotalsByGroup map[string]int   `json:"subtotals_by_group"`
	TotalModifier    int              `json:"total_modifier"`
	FinalTotal       int              `json:"final_total"`
	IsAdvantage      bool             `json:"is_advantage"`
	IsDisadvantage   bool             `json:"is_disadvantage"`
	AdvantageRolls   []RollView       `json:"advantage_rolls,omitempty"`
}

// NewRollView converts a roll result, including the two nested results
// recorded under advantage or disadvantage.
func NewRollView(r *dice.Result) RollView {
	v := RollView{
		Expression:       r.Expression,
		IndividualRolls:  r.IndividualRolls,
		RollsByGroup:     r.RollsByGroup,
		SubtotalsByGroup: r.SubtotalsByGroup,
		TotalModifier:    r.TotalModifier,
		FinalTotal:       r.FinalTotal,
		IsAdvantage:      r.Advantage,
		IsDisadvantage:   r.Disadvantage,
	}
	for _, nested := range r.AdvantageRolls {
		v.AdvantageRolls = append(v.AdvantageRolls, NewRollView(nested))
	}
	return v
}

// GroupView is one NdS dice group inside a parsed expression.
type GroupView struct {
	Count int `json:"count"`
	Sides int `json:"sides"`
}

// ExpressionView is the wire shape of a validated dice expression.
type ExpressionView struct {
	Expression    string      `json:"expression"`
	Canonical     string      `json:"canonical"`
	Groups        []GroupView `json:"groups"`
	Modifiers     []int       `json:"modifiers,omitempty"`
	TotalModifier int         `json:"total_modifier"`
	Advantage     bool        `json:"advantage"`
	Disadvantage  bool        `json:"disadvantage"`
}

// NewExpressionView converts a parsed expression.
func NewExpressionView(e *dice.Expression) ExpressionView {
	v := ExpressionView{
		Expression:    e.Text,
		Canonical:     e.String(),
		Modifiers:     e.Modifiers,
		TotalModifier: e.TotalModifier(),
		Advantage:     e.Advantage,
		Disadvantage:  e.Disadvantage,
	}
	for _, g := range e.Groups {
		v.Groups = append(v.Groups, GroupView{Count: g.Count, Sides: g.Sides})
	}
	return v
}

// StatsView is the wire shape of a dice expression's distribution bounds.
type StatsView struct {
	Expression string  `json:"expression"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Mean       float64 `json:"mean"`
}

// CombatantView is the wire shape of one combatant inside a snapshot.
type CombatantView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	CharacterID     string `json:"character_id,omitempty"`
	EnemyID         string `json:"enemy_id,omitempty"`
	CurrentHealth   int    `json:"current_health"`
	MaxHealth       int    `json:"max_health"`
	ArmorClass      int    `json:"armor_class"`
	InitiativeRoll  int    `json:"initiative_roll"`
	InitiativeScore int    `json:"initiative_score"`
	Status          string `json:"status"`
	AIState         string `json:"ai_state,omitempty"`
	Defending       bool   `json:"defending,omitempty"`
	Weapon          string `json:"weapon"`
}

// NewCombatantView converts a combatant.
func NewCombatantView(c *combat.Combatant) CombatantView {
	return CombatantView{
		ID:              c.ID,
		Name:            c.DisplayName,
		Type:            string(c.Type),
		CharacterID:     c.CharacterID,
		EnemyID:         c.EnemyID,
		CurrentHealth:   c.CurrentHealth,
		MaxHealth:       c.MaxHealth,
		ArmorClass:      c.ArmorClass,
		InitiativeRoll:  c.InitiativeRoll,
		InitiativeScore: c.InitiativeScore(),
		Status:          string(c.Status),
		AIState:         string(c.AIState),
		Defending:       c.Defending,
		Weapon:          c.Weapon.Descriptor(),
	}
}

// EncounterView is the combat snapshot returned by every combat endpoint.
type EncounterView struct {
	ID                 string          `json:"id"`
	AdventureID        string          `json:"adventure_id"`
	Status             string          `json:"status"`
	Round              int             `json:"round"`
	CurrentCombatantID string          `json:"current_combatant_id,omitempty"`
	InitiativeOrder    []string        `json:"initiative_order"`
	Combatants         []CombatantView `json:"combatants"`
	ActiveCombatants   int             `json:"active_combatants"`
	Winner             string          `json:"winner,omitempty"`
	StartedAt          time.Time       `json:"started_at"`
	EndedAt            *time.Time      `json:"ended_at,omitempty"`
	Version            int             `json:"version"`
}

// NewEncounterView converts an encounter aggregate.
func NewEncounterView(e *combat.Encounter) EncounterView {
	v := EncounterView{
		ID:               e.ID,
		AdventureID:      e.AdventureID,
		Status:           string(e.Status),
		Round:            e.CurrentRound,
		InitiativeOrder:  e.InitiativeOrder,
		ActiveCombatants: e.ActiveCombatants(),
		Winner:           string(e.Winner),
		StartedAt:        e.StartedAt,
		EndedAt:          e.EndedAt,
		Version:          e.Version,
	}
	if cur := e.CurrentCombatant(); cur != nil {
		v.CurrentCombatantID = cur.ID
	}
	for _, c := range e.Combatants {
		v.Combatants = append(v.Combatants, NewCombatantView(c))
	}
	return v
}

// AttackView reports one attack roll and any damage it dealt.
type AttackView struct {
	AttackerID       string `json:"attacker_id"`
	TargetID         string `json:"target_id"`
	D20Roll          int    `json:"d20_roll"`
	AttackModifier   int    `json:"attack_modifier"`
	Total            int    `json:"total"`
	Hit              bool   `json:"hit"`
	Critical         bool   `json:"critical"`
	CriticalMiss     bool   `json:"critical_miss"`
	DamageExpression string `json:"damage_expression,omitempty"`
	Damage           int    `json:"damage,omitempty"`
	TargetHealth     int    `json:"target_health"`
	TargetStatus     string `json:"target_status"`
}

// TurnResult reports one resolved turn: what the actor did, what it did
// to the target, and where the encounter stands afterwards.
type TurnResult struct {
	EncounterID     string        `json:"encounter_id"`
	Round           int           `json:"round"`
	ActorID         string        `json:"actor_id"`
	Action          string        `json:"action"` // attack, flee, defend, pass
	Attack          *AttackView   `json:"attack,omitempty"`
	CombatEnded     bool          `json:"combat_ended"`
	Winner          string        `json:"winner,omitempty"`
	NextCombatantID string        `json:"next_combatant_id,omitempty"`
	Encounter       EncounterView `json:"encounter"`
}
