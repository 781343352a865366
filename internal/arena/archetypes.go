package arena

import (
	"sort"

	"github.com/freeeve/natural-twenty/api/pkg/combat"
)

// Stock stat blocks, loosely after the 5e SRD. Between them they cover
// every combat rule: the goblin breaks and runs at 30% health, the orc
// never runs, the troll resists damage.
var characterArchetypes = map[string]combat.CharacterProfile{
	"knight": {
		ID:               "knight",
		Name:             "Knight",
		MaxHealth:        40,
		ArmorClass:       18,
		Strength:         16,
		Dexterity:        10,
		WeaponDescriptor: "Longsword|1d8",
	},
	"archer": {
		ID:               "archer",
		Name:             "Archer",
		MaxHealth:        28,
		ArmorClass:       14,
		Strength:         12,
		Dexterity:        16,
		WeaponDescriptor: "Longbow|1d8",
	},
}

var enemyArchetypes = map[string]combat.EnemyProfile{
	"goblin": {
		ID:               "goblin",
		Name:             "Goblin",
		MaxHealth:        10,
		ArmorClass:       13,
		Strength:         8,
		Dexterity:        14,
		WeaponDescriptor: "Scimitar|1d6",
		FleeThreshold:    threshold(0.3),
	},
	"orc": {
		ID:               "orc",
		Name:             "Orc",
		MaxHealth:        15,
		ArmorClass:       13,
		Strength:         16,
		Dexterity:        12,
		WeaponDescriptor: "Greataxe|1d12",
		FleeThreshold:    threshold(0),
	},
	"troll": {
		ID:               "troll",
		Name:             "Troll",
		MaxHealth:        48,
		ArmorClass:       15,
		Strength:         18,
		Dexterity:        13,
		WeaponDescriptor: "Claws|2d6",
		FleeThreshold:    threshold(0.1),
		Resistance:       combat.ResistResistant,
	},
}

func threshold(v float64) *float64 { return &v }

// CharacterArchetypes lists the character archetype names, sorted.
func CharacterArchetypes() []string {
	names := make([]string, 0, len(characterArchetypes))
	for name := range characterArchetypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnemyArchetypes lists the enemy archetype names, sorted.
func EnemyArchetypes() []string {
	names := make([]string, 0, len(enemyArchetypes))
	for name := range enemyArchetypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
