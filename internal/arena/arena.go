// Package arena plays whole encounters between stock archetype parties,
// with both sides driven by the enemy stance machine. cmd/skirmish uses
// it to balance-check the combat rules without a server or a database.
package arena

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/pkg/combat"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// DefaultMaxRounds caps a runaway fight; hitting the cap is a draw.
const DefaultMaxRounds = 50

// Config configures a single simulated encounter.
type Config struct {
	Label     string
	Party     []string // character archetype names
	Foes      []string // enemy archetype names
	MaxRounds int      // cap before calling a draw (default DefaultMaxRounds)
	Seed      int64    // 0 = unseeded randomness
}

// Result describes the outcome of a completed encounter. RemainingHP is
// keyed by display name and covers every combatant, fallen ones included.
type Result struct {
	Label       string         `json:"label"`
	Winner      string         `json:"winner"`
	Rounds      int            `json:"rounds"`
	Turns       int            `json:"turns"`
	Survivors   []string       `json:"survivors"`
	RemainingHP map[string]int `json:"remaining_hp"`
}

// Run plays one encounter to completion. Every die in the fight comes
// from a single source, so a nonzero seed reproduces the whole thing.
func Run(cfg Config) (*Result, error) {
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	label := cfg.Label
	if label == "" {
		label = "skirmish"
	}

	svc := dice.NewService()
	if cfg.Seed != 0 {
		svc = dice.NewServiceWithSource(dice.NewSeededSource(cfg.Seed))
	}

	combatants, err := buildSides(svc, cfg.Party, cfg.Foes)
	if err != nil {
		return nil, err
	}

	enc, err := combat.NewEncounter(label, "arena", combatants)
	if err != nil {
		return nil, err
	}
	if err := enc.StartCombat(combat.ComputeOrder(enc.Combatants)); err != nil {
		return nil, err
	}

	result := &Result{Label: label, RemainingHP: make(map[string]int, len(combatants))}
	for enc.Status == combat.EncounterActive {
		result.Turns++
		if err := takeTurn(svc, enc, enc.CurrentCombatant()); err != nil {
			return nil, err
		}

		if winner := enc.CheckCombatEnd(); winner != "" {
			if err := enc.EndCombat(winner); err != nil {
				return nil, err
			}
			result.Rounds = enc.CurrentRound
			break
		}
		if err := enc.AdvanceToNextTurn(); err != nil {
			return nil, err
		}
		if enc.CurrentRound > cfg.MaxRounds {
			if err := enc.EndCombat(combat.WinnerDraw); err != nil {
				return nil, err
			}
			result.Rounds = cfg.MaxRounds
			break
		}
	}

	result.Winner = string(enc.Winner)
	for _, c := range enc.Combatants {
		result.RemainingHP[c.DisplayName] = c.CurrentHealth
		if c.IsActive() {
			result.Survivors = append(result.Survivors, c.DisplayName)
		}
	}

	log.Info().
		Str("label", label).
		Str("winner", result.Winner).
		Int("rounds", result.Rounds).
		Int("turns", result.Turns).
		Msg("skirmish finished")

	return result, nil
}

// takeTurn evaluates the actor's stance and plays the chosen action. A
// pass leaves the encounter untouched.
func takeTurn(svc *dice.Service, enc *combat.Encounter, actor *combat.Combatant) error {
	state := combat.EvaluateAIState(actor)
	actor.AIState = state
	action := combat.SelectAIAction(actor, state, enc.Opponents(actor))

	switch action.Type {
	case combat.ActionAttack:
		target := enc.CombatantByID(action.TargetID)
		attack, err := combat.ResolveAttack(svc, actor, target, actor.AttackModifier)
		if err != nil {
			return fmt.Errorf("%s attacks %s: %w", actor.DisplayName, target.DisplayName, err)
		}
		if attack.Hit {
			damage, err := combat.RollDamage(svc, actor.Weapon, actor.DamageModifier, attack.Critical, target.Resistance)
			if err != nil {
				return fmt.Errorf("%s damage roll: %w", actor.DisplayName, err)
			}
			target.ApplyDamage(damage.Damage)
		}
	case combat.ActionFlee:
		actor.MarkFled()
	}
	return nil
}

// buildSides rolls initiative for every requested archetype. Duplicates
// are numbered in request order, so two goblins read as Goblin 1 and
// Goblin 2.
func buildSides(svc *dice.Service, party, foes []string) ([]*combat.Combatant, error) {
	combatants := make([]*combat.Combatant, 0, len(party)+len(foes))

	spawned := make(map[string]int, len(party))
	counts := tally(party)
	for i, raw := range party {
		key := normalize(raw)
		profile, ok := characterArchetypes[key]
		if !ok {
			return nil, fmt.Errorf("unknown character archetype %q, want one of: %s",
				raw, strings.Join(CharacterArchetypes(), ", "))
		}
		spawned[key]++
		if counts[key] > 1 {
			profile.Name = fmt.Sprintf("%s %d", profile.Name, spawned[key])
		}
		roll, tieBreak, err := rollInitiative(svc)
		if err != nil {
			return nil, err
		}
		c, err := combat.NewCharacterCombatant(fmt.Sprintf("p%d", i+1), profile, roll, tieBreak)
		if err != nil {
			return nil, err
		}
		combatants = append(combatants, c)
	}

	spawned = make(map[string]int, len(foes))
	counts = tally(foes)
	for i, raw := range foes {
		key := normalize(raw)
		profile, ok := enemyArchetypes[key]
		if !ok {
			return nil, fmt.Errorf("unknown enemy archetype %q, want one of: %s",
				raw, strings.Join(EnemyArchetypes(), ", "))
		}
		spawned[key]++
		if counts[key] > 1 {
			profile.Name = fmt.Sprintf("%s %d", profile.Name, spawned[key])
		}
		roll, tieBreak, err := rollInitiative(svc)
		if err != nil {
			return nil, err
		}
		c, err := combat.NewEnemyCombatant(fmt.Sprintf("f%d", i+1), profile, roll, tieBreak)
		if err != nil {
			return nil, err
		}
		combatants = append(combatants, c)
	}

	return combatants, nil
}

func tally(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for _, n := range names {
		m[normalize(n)]++
	}
	return m
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// rollInitiative returns a d20 roll and a stable tiebreak key, the same
// pair the combat service rolls when it spawns combatants.
func rollInitiative(svc *dice.Service) (int, int, error) {
	roll, err := svc.Roll("1d20")
	if err != nil {
		return 0, 0, err
	}
	tieBreak, err := svc.Roll("1d1000")
	if err != nil {
		return 0, 0, err
	}
	return roll.FinalTotal, tieBreak.FinalTotal, nil
}
