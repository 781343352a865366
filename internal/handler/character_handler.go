package handler

import (
	"net/http"

	"github.com/freeeve/natural-twenty/api/internal/auth"
	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
)

// CharacterHandler handles character sheet endpoints.
type CharacterHandler struct {
	characterRepo repository.CharacterRepository
	adventureRepo repository.AdventureRepository
}

// NewCharacterHandler creates a CharacterHandler.
func NewCharacterHandler(characterRepo repository.CharacterRepository, adventureRepo repository.AdventureRepository) *CharacterHandler {
	return &CharacterHandler{characterRepo: characterRepo, adventureRepo: adventureRepo}
}

// CreateCharacter handles POST /api/v1/adventures/{id}/characters
func (h *CharacterHandler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	adventureID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	adventure, err := h.adventureRepo.FindByID(r.Context(), adventureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if adventure == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "adventure not found")
		return
	}
	if adventure.UserID != userID {
		writeError(w, http.StatusForbidden, CodeUnauthorized, "adventure belongs to another user")
		return
	}

	var req struct {
		Name         string `json:"name"`
		Class        string `json:"class"`
		Level        int    `json:"level"`
		MaxHealth    int    `json:"max_health"`
		ArmorClass   int    `json:"armor_class"`
		Strength     int    `json:"strength"`
		Dexterity    int    `json:"dexterity"`
		Constitution int    `json:"constitution"`
		Intelligence int    `json:"intelligence"`
		Wisdom       int    `json:"wisdom"`
		Charisma     int    `json:"charisma"`
		Weapon       string `json:"weapon"`
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
	if req.Level < 1 {
		req.Level = 1
	}

	character, err := h.characterRepo.Create(r.Context(), &model.Character{
		AdventureID:   adventureID,
		Name:          req.Name,
		Class:         req.Class,
		Level:         req.Level,
		MaxHealth:     req.MaxHealth,
		CurrentHealth: req.MaxHealth,
		ArmorClass:    req.ArmorClass,
		Strength:      req.Strength,
		Dexterity:     req.Dexterity,
		Constitution:  req.Constitution,
		Intelligence:  req.Intelligence,
		Wisdom:        req.Wisdom,
		Charisma:      req.Charisma,
		Weapon:        req.Weapon,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, character)
}

// ListCharacters handles GET /api/v1/adventures/{id}/characters
func (h *CharacterHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	adventureID := r.PathValue("id")
	characters, err := h.characterRepo.ListByAdventure(r.Context(), adventureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if characters == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, characters)
}

// GetCharacter handles GET /api/v1/characters/{id}
func (h *CharacterHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	character, err := h.characterRepo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if character == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "character not found")
		return
	}
	writeJSON(w, http.StatusOK, character)
}

// DeleteCharacter handles DELETE /api/v1/characters/{id}
func (h *CharacterHandler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	character, err := h.characterRepo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if character == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "character not found")
		return
	}

	if err := h.characterRepo.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
