package combat

import (
	"fmt"
	"strings"

	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// Weapon is an equipped weapon: a display name plus the damage expression
// rolled on a hit.
type Weapon struct {
	Name   string
	Damage string
}

// ParseWeapon splits a "<Name>|<DamageExpression>" descriptor, e.g.
// "Scimitar|1d6+2", and validates the expression against the dice grammar.
func ParseWeapon(descriptor string) (Weapon, error) {
	name, expr, found := strings.Cut(descriptor, "|")
	if !found {
		return Weapon{}, fmt.Errorf("%w: weapon descriptor %q missing separator", ErrValidation, descriptor)
	}
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if name == "" {
		return Weapon{}, fmt.Errorf("%w: weapon descriptor %q missing name", ErrValidation, descriptor)
	}
	if _, err := dice.Parse(expr); err != nil {
		return Weapon{}, fmt.Errorf("weapon %q: %w", name, err)
	}
	return Weapon{Name: name, Damage: expr}, nil
}

// Descriptor renders the weapon back into "<Name>|<DamageExpression>" form.
func (w Weapon) Descriptor() string {
	return w.Name + "|" + w.Damage
}
