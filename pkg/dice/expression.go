// Package dice implements the dice expression notation used across the
// combat engine: parsing, validation, cryptographically random evaluation,
// and advantage/disadvantage semantics.
package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bounds for a single dice group.
const (
	MaxDice  = 1000
	MaxSides = 1000
)

var (
	// ErrInvalidExpression reports notation that does not match the grammar.
	ErrInvalidExpression = errors.New("invalid dice expression")
	// ErrOutOfRange reports dice counts or sides outside [1,1000].
	ErrOutOfRange = errors.New("dice value out of range")
)

// Group is one NdS dice group: roll Count dice with Sides faces each.
// Modifier is added to the group's subtotal. The parser always emits
// groups with Modifier 0 and records written modifiers separately on the
// expression; the field exists for groups built programmatically, e.g.
// by the damage calculator.
type Group struct {
	Count    int
	Sides    int
	Modifier int
}

// Key returns the canonical "NdS" key used to bucket outcomes, e.g. "2d6".
func (g Group) Key() string {
	return strconv.Itoa(g.Count) + "d" + strconv.Itoa(g.Sides)
}

func (g Group) String() string {
	if g.Modifier == 0 {
		return g.Key()
	}
	return g.Key() + signed(g.Modifier)
}

// Expression is a parsed dice expression: one or more groups plus standalone
// modifiers, evaluated left to right, optionally flagged for advantage or
// disadvantage. Values are immutable once built.
type Expression struct {
	// Text preserves the caller's input verbatim, including whitespace.
	Text         string
	Groups       []Group
	Modifiers    []int
	Advantage    bool
	Disadvantage bool
}

// TotalModifier returns the signed sum of the standalone modifiers plus
// every group's internal modifier.
func (e *Expression) TotalModifier() int {
	total := 0
	for _, g := range e.Groups {
		total += g.Modifier
	}
	for _, m := range e.Modifiers {
		total += m
	}
	return total
}

// String renders the canonical form of the expression: groups in order,
// then standalone modifiers, then the advantage/disadvantage flag. It may
// differ from Text in spacing and term order.
func (e *Expression) String() string {
	var b strings.Builder
	for i, g := range e.Groups {
		if i > 0 {
			b.WriteByte('+')
		}
		b.WriteString(g.String())
	}
	for _, m := range e.Modifiers {
		b.WriteString(signed(m))
	}
	if e.Advantage {
		b.WriteByte('a')
	}
	if e.Disadvantage {
		b.WriteByte('d')
	}
	return b.String()
}

func signed(n int) string {
	if n < 0 {
		return strconv.Itoa(n)
	}
	return "+" + strconv.Itoa(n)
}

// invalidf wraps ErrInvalidExpression with a reason.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidExpression, fmt.Sprintf(format, args...))
}

// rangef wraps ErrOutOfRange with a reason.
func rangef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOutOfRange, fmt.Sprintf(format, args...))
}
