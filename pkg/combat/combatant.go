package combat

import (
	"fmt"
)

// CombatantType distinguishes player characters from enemies.
type CombatantType string

const (
	TypeCharacter CombatantType = "Character"
	TypeEnemy     CombatantType = "Enemy"
)

// CombatantStatus tracks whether a combatant can still act.
type CombatantStatus string

const (
	CombatantActive   CombatantStatus = "Active"
	CombatantDefeated CombatantStatus = "Defeated"
	CombatantFled     CombatantStatus = "Fled"
)

// AIState is the stance an enemy evaluates at the start of its turn.
type AIState string

const (
	AIAggressive AIState = "Aggressive"
	AIDefensive  AIState = "Defensive"
	AIFlee       AIState = "Flee"
)

// DefaultFleeThreshold is the health fraction at or below which enemies
// without their own threshold try to run.
const DefaultFleeThreshold = 0.25

// ProficiencyBonus is the flat bonus characters and enemies add to attack
// rolls on top of their strength modifier.
const ProficiencyBonus = 2

// AbilityModifier converts an ability score to its modifier, e.g. 16 -> +3,
// 7 -> -2. Rounds down, matching the 5e table.
func AbilityModifier(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	return -((11 - score) / 2)
}

// CharacterProfile is the slice of a character sheet combat reads.
type CharacterProfile struct {
	ID         string
	Name       string
	MaxHealth  int
	ArmorClass int
	Strength   int
	Dexterity  int
	// WeaponDescriptor is "<Name>|<DamageExpression>", e.g. "Longsword|1d8".
	WeaponDescriptor string
}

// EnemyProfile is the slice of an enemy stat block combat reads.
type EnemyProfile struct {
	ID               string
	Name             string
	MaxHealth        int
	ArmorClass       int
	Strength         int
	Dexterity        int
	WeaponDescriptor string
	// FleeThreshold overrides DefaultFleeThreshold when set.
	FleeThreshold *float64
	Resistance    Resistance
}

// Combatant is one participant in an encounter. Created when the encounter
// is initiated and mutated only through turn resolution.
type Combatant struct {
	ID          string
	DisplayName string
	Type        CombatantType
	// CharacterID and EnemyID reference the source sheet; exactly one is
	// set, matching Type.
	CharacterID       string
	EnemyID           string
	CurrentHealth     int
	MaxHealth         int
	ArmorClass        int
	DexterityModifier int
	AttackModifier    int
	DamageModifier    int
	InitiativeRoll    int
	Status            CombatantStatus
	AIState           AIState // enemies only
	FleeThreshold     float64 // enemies only
	Resistance        Resistance
	Weapon            Weapon
	// Defending marks a guarded stance that lasts until the start of the
	// combatant's next turn; attacks against it roll at disadvantage.
	Defending bool
	// TieBreak is a stable random key assigned once at creation, used as
	// the final initiative tiebreaker.
	TieBreak int
}

// NewCharacterCombatant builds a combatant from a character sheet. The
// initiative roll and tie break key come from the dice service at
// encounter creation and are never re-rolled.
func NewCharacterCombatant(id string, p CharacterProfile, initiativeRoll, tieBreak int) (*Combatant, error) {
	weapon, err := ParseWeapon(p.WeaponDescriptor)
	if err != nil {
		return nil, err
	}
	c := &Combatant{
		ID:                id,
		DisplayName:       p.Name,
		Type:              TypeCharacter,
		CharacterID:       p.ID,
		CurrentHealth:     p.MaxHealth,
		MaxHealth:         p.MaxHealth,
		ArmorClass:        p.ArmorClass,
		DexterityModifier: AbilityModifier(p.Dexterity),
		AttackModifier:    AbilityModifier(p.Strength) + ProficiencyBonus,
		DamageModifier:    AbilityModifier(p.Strength),
		InitiativeRoll:    initiativeRoll,
		Status:            CombatantActive,
		Resistance:        ResistNone,
		Weapon:            weapon,
		TieBreak:          tieBreak,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewEnemyCombatant builds a combatant from an enemy stat block.
func NewEnemyCombatant(id string, p EnemyProfile, initiativeRoll, tieBreak int) (*Combatant, error) {
	weapon, err := ParseWeapon(p.WeaponDescriptor)
	if err != nil {
		return nil, err
	}
	threshold := DefaultFleeThreshold
	if p.FleeThreshold != nil {
		threshold = *p.FleeThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: flee threshold %v outside [0,1]", ErrValidation, threshold)
	}
	resistance := p.Resistance
	if resistance == "" {
		resistance = ResistNone
	}
	c := &Combatant{
		ID:                id,
		DisplayName:       p.Name,
		Type:              TypeEnemy,
		EnemyID:           p.ID,
		CurrentHealth:     p.MaxHealth,
		MaxHealth:         p.MaxHealth,
		ArmorClass:        p.ArmorClass,
		DexterityModifier: AbilityModifier(p.Dexterity),
		AttackModifier:    AbilityModifier(p.Strength) + ProficiencyBonus,
		DamageModifier:    AbilityModifier(p.Strength),
		InitiativeRoll:    initiativeRoll,
		Status:            CombatantActive,
		AIState:           AIAggressive,
		FleeThreshold:     threshold,
		Resistance:        resistance,
		Weapon:            weapon,
		TieBreak:          tieBreak,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Combatant) validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: combatant id is required", ErrValidation)
	}
	if c.DisplayName == "" {
		return fmt.Errorf("%w: combatant name is required", ErrValidation)
	}
	if c.CharacterID == "" && c.EnemyID == "" {
		return fmt.Errorf("%w: combatant must reference a character or an enemy", ErrValidation)
	}
	if c.MaxHealth < 1 {
		return fmt.Errorf("%w: max health %d must be positive", ErrValidation, c.MaxHealth)
	}
	if c.ArmorClass < 10 {
		return fmt.Errorf("%w: armor class %d below 10", ErrValidation, c.ArmorClass)
	}
	if c.InitiativeRoll < 1 || c.InitiativeRoll > 20 {
		return fmt.Errorf("%w: initiative roll %d outside [1,20]", ErrValidation, c.InitiativeRoll)
	}
	return nil
}

// InitiativeScore is the initiative roll plus the dexterity modifier.
func (c *Combatant) InitiativeScore() int {
	return c.InitiativeRoll + c.DexterityModifier
}

// IsActive reports whether the combatant can still act and be targeted.
func (c *Combatant) IsActive() bool {
	return c.Status == CombatantActive
}

// OpposedTo reports whether o fights on the other side.
func (c *Combatant) OpposedTo(o *Combatant) bool {
	return c.Type != o.Type
}

// ApplyDamage reduces health, flooring at zero. At zero the combatant is
// Defeated.
func (c *Combatant) ApplyDamage(amount int) {
	if amount < 0 {
		amount = 0
	}
	c.CurrentHealth -= amount
	if c.CurrentHealth <= 0 {
		c.CurrentHealth = 0
		if c.Status == CombatantActive {
			c.Status = CombatantDefeated
		}
	}
}

// Heal restores health up to the maximum. A Defeated combatant healed
// above zero fights again; a Fled combatant stays gone.
func (c *Combatant) Heal(amount int) error {
	if c.Status == CombatantFled {
		return fmt.Errorf("%w: %s has fled", ErrInvalidTarget, c.DisplayName)
	}
	if amount < 0 {
		amount = 0
	}
	c.CurrentHealth += amount
	if c.CurrentHealth > c.MaxHealth {
		c.CurrentHealth = c.MaxHealth
	}
	if c.CurrentHealth > 0 {
		c.Status = CombatantActive
	}
	return nil
}

// MarkFled removes the combatant from the fight permanently.
func (c *Combatant) MarkFled() {
	c.Status = CombatantFled
	c.Defending = false
}

// Defend puts the combatant into a guarded stance until its next turn.
func (c *Combatant) Defend() {
	c.Defending = true
}
