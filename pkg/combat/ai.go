package combat

// ActionType enumerates what a combatant can do with its turn.
type ActionType string

const (
	ActionAttack ActionType = "attack"
	ActionFlee   ActionType = "flee"
	ActionDefend ActionType = "defend"
	ActionPass   ActionType = "pass"
)

// Action is one combatant's chosen move for its turn.
type Action struct {
	Type     ActionType
	ActorID  string
	TargetID string // attacks only
}

// EvaluateAIState derives an enemy's stance from its health fraction:
// above half health it presses the attack, at half or below it picks off
// the weakest, and at or below its flee threshold it runs. The threshold
// wins when it overlaps the other bands.
func EvaluateAIState(c *Combatant) AIState {
	h := float64(c.CurrentHealth) / float64(c.MaxHealth)
	switch {
	case h <= c.FleeThreshold:
		return AIFlee
	case h > 0.5:
		return AIAggressive
	default:
		return AIDefensive
	}
}

// SelectAIAction picks the enemy's move given its evaluated stance.
// Aggressive turns attack the opponent with the highest maximum health,
// breaking ties by higher current health and then by lower id. Defensive
// turns attack the opponent with the lowest current health. Non-Active
// opponents are never targeted; with no valid target the enemy passes.
func SelectAIAction(enemy *Combatant, state AIState, opponents []*Combatant) Action {
	if state == AIFlee {
		return Action{Type: ActionFlee, ActorID: enemy.ID}
	}

	var target *Combatant
	for _, o := range opponents {
		if o == nil || !o.IsActive() {
			continue
		}
		if target == nil {
			target = o
			continue
		}
		if state == AIAggressive {
			if preferAggressive(o, target) {
				target = o
			}
		} else if o.CurrentHealth < target.CurrentHealth {
			target = o
		}
	}

	if target == nil {
		return Action{Type: ActionPass, ActorID: enemy.ID}
	}
	return Action{Type: ActionAttack, ActorID: enemy.ID, TargetID: target.ID}
}

// preferAggressive reports whether candidate beats current as an
// aggressive-stance target.
func preferAggressive(candidate, current *Combatant) bool {
	if candidate.MaxHealth != current.MaxHealth {
		return candidate.MaxHealth > current.MaxHealth
	}
	if candidate.CurrentHealth != current.CurrentHealth {
		return candidate.CurrentHealth > current.CurrentHealth
	}
	return candidate.ID < current.ID
}
