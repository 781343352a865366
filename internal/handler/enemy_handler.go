package handler

import (
	"net/http"

	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
)

var resistances = map[string]bool{
	"":                              true,
	string(combat.ResistNone):       true,
	string(combat.ResistResistant):  true,
	string(combat.ResistVulnerable): true,
}

// EnemyHandler handles bestiary endpoints.
type EnemyHandler struct {
	enemyRepo repository.EnemyRepository
}

// NewEnemyHandler creates an EnemyHandler.
func NewEnemyHandler(enemyRepo repository.EnemyRepository) *EnemyHandler {
	return &EnemyHandler{enemyRepo: enemyRepo}
}

// ListEnemies handles GET /api/v1/enemies
func (h *EnemyHandler) ListEnemies(w http.ResponseWriter, r *http.Request) {
	enemies, err := h.enemyRepo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if enemies == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, enemies)
}

// CreateEnemy handles POST /api/v1/enemies
func (h *EnemyHandler) CreateEnemy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string   `json:"name"`
		MaxHealth       int      `json:"max_health"`
		ArmorClass      int      `json:"armor_class"`
		Strength        int      `json:"strength"`
		Dexterity       int      `json:"dexterity"`
		Weapon          string   `json:"weapon"`
		FleeThreshold   *float64 `json:"flee_threshold,omitempty"`
		Resistance      string   `json:"resistance,omitempty"`
		ChallengeRating float64  `json:"challenge_rating"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "name is required")
		return
	}
	if req.MaxHealth < 1 {
		writeError(w, http.StatusBadRequest, CodeValidation, "max_health must be at least 1")
		return
	}
	if req.ArmorClass < 1 {
		writeError(w, http.StatusBadRequest, CodeValidation, "armor_class must be at least 1")
		return
	}
	if _, err := combat.ParseWeapon(req.Weapon); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.FleeThreshold != nil && (*req.FleeThreshold < 0 || *req.FleeThreshold > 1) {
		writeError(w, http.StatusBadRequest, CodeValidation, "flee_threshold must be between 0 and 1")
		return
	}
	if !resistances[req.Resistance] {
		writeError(w, http.StatusBadRequest, CodeValidation, "resistance must be none, resistant or vulnerable")
		return
	}

	enemy, err := h.enemyRepo.Create(r.Context(), &model.Enemy{
		Name:            req.Name,
		MaxHealth:       req.MaxHealth,
		ArmorClass:      req.ArmorClass,
		Strength:        req.Strength,
		Dexterity:       req.Dexterity,
		Weapon:          req.Weapon,
		FleeThreshold:   req.FleeThreshold,
		Resistance:      req.Resistance,
		ChallengeRating: req.ChallengeRating,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, enemy)
}
