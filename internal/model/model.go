package model

import (
	"time"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Adventure represents one player's campaign: the container for
// characters, roll history, and combat encounters.
type Adventure struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"` // active, completed, abandoned
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Character represents a playable character sheet.
type Character struct {
	ID            string    `json:"id"`
	AdventureID   string    `json:"adventure_id"`
	Name          string    `json:"name"`
	Class         string    `json:"class"`
	Level         int       `json:"level"`
	MaxHealth     int       `json:"max_health"`
	CurrentHealth int       `json:"current_health"`
	ArmorClass    int       `json:"armor_class"`
	Strength      int       `json:"strength"`
	Dexterity     int       `json:"dexterity"`
	Constitution  int       `json:"constitution"`
	Intelligence  int       `json:"intelligence"`
	Wisdom        int       `json:"wisdom"`
	Charisma      int       `json:"charisma"`
	Weapon        string    `json:"weapon"` // "<Name>|<DamageExpression>"
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Enemy represents a stat block enemies are spawned from.
type Enemy struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MaxHealth       int      `json:"max_health"`
	ArmorClass      int      `json:"armor_class"`
	Strength        int      `json:"strength"`
	Dexterity       int      `json:"dexterity"`
	Weapon          string   `json:"weapon"`
	FleeThreshold   *float64 `json:"flee_threshold,omitempty"`
	Resistance      string   `json:"resistance,omitempty"` // none, resistant, vulnerable
	ChallengeRating float64  `json:"challenge_rating"`
}

// RollRecord is one dice roll kept in an adventure's recent history.
type RollRecord struct {
	Expression string    `json:"expression"`
	FinalTotal int       `json:"final_total"`
	Rolls      []int     `json:"rolls"`
	RolledAt   time.Time `json:"rolled_at"`
}
