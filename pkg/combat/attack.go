package combat

import (
	"fmt"

	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// AttackResult reports one d20 attack roll.
type AttackResult struct {
	D20Roll        int
	AttackModifier int
	Total          int
	Hit            bool
	Critical       bool
	CriticalMiss   bool
}

// ResolveAttack rolls d20 + modifier against the target's armor class.
// A natural 20 always hits and crits; a natural 1 always misses; otherwise
// the attack hits when the total meets or beats the armor class. A
// defending target imposes disadvantage on the roll.
func ResolveAttack(svc *dice.Service, attacker, target *Combatant, attackModifier int) (*AttackResult, error) {
	if attacker == nil || !attacker.IsActive() {
		return nil, fmt.Errorf("%w: attacker cannot act", ErrInvalidState)
	}
	if target == nil || !target.IsActive() {
		return nil, fmt.Errorf("%w: target is not active", ErrInvalidTarget)
	}

	expr := "1d20"
	if target.Defending {
		expr = "1d20d"
	}
	roll, err := svc.Roll(expr)
	if err != nil {
		return nil, err
	}

	d20 := roll.FinalTotal
	result := &AttackResult{
		D20Roll:        d20,
		AttackModifier: attackModifier,
		Total:          d20 + attackModifier,
	}
	switch {
	case d20 == 1:
		result.CriticalMiss = true
	case d20 == 20:
		result.Critical = true
		result.Hit = true
	default:
		result.Hit = result.Total >= target.ArmorClass
	}
	return result, nil
}
