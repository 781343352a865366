package combat

import (
	"fmt"

	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// Resistance scales incoming damage.
type Resistance string

const (
	ResistNone       Resistance = "none"
	ResistResistant  Resistance = "resistant"
	ResistVulnerable Resistance = "vulnerable"
)

// DamageResult reports one damage roll.
type DamageResult struct {
	// Expression is the notation actually rolled, e.g. "2d8+3+2" for a
	// critical hit with a "1d8+3" weapon and a +2 modifier.
	Expression string
	Roll       *dice.Result
	Damage     int
	Critical   bool
	Resistance Resistance
}

// RollDamage evaluates a weapon's damage expression. A critical hit
// doubles every group's dice count before rolling, never the rolled
// result. The ability modifier joins the expression as a standalone
// modifier. Resistance halves the rolled damage rounding down,
// vulnerability doubles it, and a hit always deals at least 1.
func RollDamage(svc *dice.Service, weapon Weapon, modifier int, critical bool, resistance Resistance) (*DamageResult, error) {
	parsed, err := dice.Parse(weapon.Damage)
	if err != nil {
		return nil, fmt.Errorf("weapon %q: %w", weapon.Name, err)
	}

	groups := make([]dice.Group, len(parsed.Groups))
	copy(groups, parsed.Groups)
	if critical {
		for i := range groups {
			groups[i].Count *= 2
		}
	}
	modifiers := make([]int, len(parsed.Modifiers), len(parsed.Modifiers)+1)
	copy(modifiers, parsed.Modifiers)
	if modifier != 0 {
		modifiers = append(modifiers, modifier)
	}

	expr := &dice.Expression{Groups: groups, Modifiers: modifiers}
	expr.Text = expr.String()

	roll, err := svc.RollExpression(expr)
	if err != nil {
		return nil, err
	}

	damage := roll.FinalTotal
	switch resistance {
	case ResistResistant:
		damage /= 2
	case ResistVulnerable:
		damage *= 2
	}
	if damage < 1 {
		damage = 1
	}

	return &DamageResult{
		Expression: expr.Text,
		Roll:       roll,
		Damage:     damage,
		Critical:   critical,
		Resistance: resistance,
	}, nil
}
