package dice

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
)

// Source produces die faces. Implementations must be safe for concurrent
// use; the roller itself holds no state between calls.
type Source interface {
	// Face returns a uniformly distributed integer in [1, sides].
	Face(sides int) (int, error)
}

// cryptoSource draws faces from the operating system CSPRNG. crypto/rand
// rejection-samples internally, so faces are unbiased for any sides value.
type cryptoSource struct{}

func (cryptoSource) Face(sides int) (int, error) {
	n, err := crand.Int(crand.Reader, big.NewInt(int64(sides)))
	if err != nil {
		return 0, fmt.Errorf("dice: read entropy: %w", err)
	}
	return int(n.Int64()) + 1, nil
}

// seededSource is a deterministic Source for reproducible rolls.
type seededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource returns a Source that replays the same face sequence for
// the same seed. Tests and offline simulations use it; production rollers
// should stay on the default crypto source.
func NewSeededSource(seed int64) Source {
	return &seededSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *seededSource) Face(sides int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(sides) + 1, nil
}

// Roller evaluates parsed expressions against a random source.
type Roller struct {
	src Source
}

// NewRoller returns a Roller backed by the system CSPRNG.
func NewRoller() *Roller {
	return &Roller{src: cryptoSource{}}
}

// NewRollerWithSource returns a Roller drawing faces from src.
func NewRollerWithSource(src Source) *Roller {
	return &Roller{src: src}
}

// Result captures every die outcome from evaluating an expression.
type Result struct {
	// Expression is the original notation text that was rolled.
	Expression string
	// IndividualRolls lists every face in the order it was rolled.
	IndividualRolls []int
	// RollsByGroup buckets faces under their "NdS" key. Two groups with
	// the same key concatenate their outcomes.
	RollsByGroup map[string][]int
	// SubtotalsByGroup holds each bucket's face sum plus any internal
	// group modifier.
	SubtotalsByGroup map[string]int
	TotalModifier    int
	FinalTotal       int
	Advantage        bool
	Disadvantage     bool
	// AdvantageRolls holds the two independent evaluations, in roll
	// order, when the expression carries an advantage or disadvantage
	// flag. Nil otherwise.
	AdvantageRolls []*Result
}

// Roll evaluates the expression. With an advantage or disadvantage flag it
// evaluates twice and keeps the higher (advantage) or lower (disadvantage)
// total; the outer result mirrors the rolls of the evaluation that counted
// and records both under AdvantageRolls.
func (r *Roller) Roll(e *Expression) (*Result, error) {
	if !e.Advantage && !e.Disadvantage {
		return r.evaluate(e)
	}

	first, err := r.evaluate(e)
	if err != nil {
		return nil, err
	}
	second, err := r.evaluate(e)
	if err != nil {
		return nil, err
	}

	selected := first
	if e.Advantage && second.FinalTotal > first.FinalTotal {
		selected = second
	}
	if e.Disadvantage && second.FinalTotal < first.FinalTotal {
		selected = second
	}

	return &Result{
		Expression:       e.Text,
		IndividualRolls:  selected.IndividualRolls,
		RollsByGroup:     selected.RollsByGroup,
		SubtotalsByGroup: selected.SubtotalsByGroup,
		TotalModifier:    selected.TotalModifier,
		FinalTotal:       selected.FinalTotal,
		Advantage:        e.Advantage,
		Disadvantage:     e.Disadvantage,
		AdvantageRolls:   []*Result{first, second},
	}, nil
}

// evaluate performs one flag-free pass over the expression's groups.
func (r *Roller) evaluate(e *Expression) (*Result, error) {
	res := &Result{
		Expression:       e.Text,
		RollsByGroup:     make(map[string][]int),
		SubtotalsByGroup: make(map[string]int),
		TotalModifier:    e.TotalModifier(),
	}

	total := 0
	for _, g := range e.Groups {
		outcomes := make([]int, 0, g.Count)
		sum := 0
		for i := 0; i < g.Count; i++ {
			face, err := r.src.Face(g.Sides)
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, face)
			sum += face
		}
		key := g.Key()
		res.IndividualRolls = append(res.IndividualRolls, outcomes...)
		res.RollsByGroup[key] = append(res.RollsByGroup[key], outcomes...)
		res.SubtotalsByGroup[key] += sum + g.Modifier
		total += sum + g.Modifier
	}
	for _, m := range e.Modifiers {
		total += m
	}
	res.FinalTotal = total
	return res, nil
}
