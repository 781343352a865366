package combat

import "sort"

// ComputeOrder sorts combatants into turn order: initiative score
// descending, then dexterity modifier descending, then the stable tie
// break key assigned at creation. No rolling happens here, so the result
// is the same on every call with the same combatants.
func ComputeOrder(combatants []*Combatant) []string {
	sorted := make([]*Combatant, len(combatants))
	copy(sorted, combatants)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.InitiativeScore() != b.InitiativeScore() {
			return a.InitiativeScore() > b.InitiativeScore()
		}
		if a.DexterityModifier != b.DexterityModifier {
			return a.DexterityModifier > b.DexterityModifier
		}
		return a.TieBreak > b.TieBreak
	})

	order := make([]string, len(sorted))
	for i, c := range sorted {
		order[i] = c.ID
	}
	return order
}
