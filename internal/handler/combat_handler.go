package handler

import (
	"net/http"

	"github.com/freeeve/natural-twenty/api/internal/service"
)

// CombatHandler handles encounter endpoints.
type CombatHandler struct {
	combatSvc *service.CombatService
}

// NewCombatHandler creates a CombatHandler.
func NewCombatHandler(combatSvc *service.CombatService) *CombatHandler {
	return &CombatHandler{combatSvc: combatSvc}
}

// InitiateCombat handles POST /api/v1/adventures/{id}/combat
func (h *CombatHandler) InitiateCombat(w http.ResponseWriter, r *http.Request) {
	adventureID := r.PathValue("id")

	var req struct {
		CharacterIDs []string `json:"character_ids"`
		EnemyIDs     []string `json:"enemy_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}

	encounter, err := h.combatSvc.Initiate(r.Context(), adventureID, req.CharacterIDs, req.EnemyIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, encounter)
}

// GetCombatStatus handles GET /api/v1/combat/{id}
func (h *CombatHandler) GetCombatStatus(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	encounter, err := h.combatSvc.GetStatus(r.Context(), encounterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encounter)
}

// Attack handles POST /api/v1/combat/{id}/attack
func (h *CombatHandler) Attack(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	var req struct {
		AttackingCombatantID string `json:"attacking_combatant_id"`
		TargetCombatantID    string `json:"target_combatant_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.AttackingCombatantID == "" || req.TargetCombatantID == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "attacking_combatant_id and target_combatant_id are required")
		return
	}

	result, err := h.combatSvc.ResolveTurn(r.Context(), encounterID, req.AttackingCombatantID, req.TargetCombatantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AITurn handles POST /api/v1/combat/{id}/ai-turn
func (h *CombatHandler) AITurn(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	result, err := h.combatSvc.ResolveAITurn(r.Context(), encounterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Flee handles POST /api/v1/combat/{id}/flee
func (h *CombatHandler) Flee(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	var req struct {
		CombatantID string `json:"combatant_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.CombatantID == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "combatant_id is required")
		return
	}

	result, err := h.combatSvc.Flee(r.Context(), encounterID, req.CombatantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Defend handles POST /api/v1/combat/{id}/defend
func (h *CombatHandler) Defend(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	var req struct {
		CombatantID string `json:"combatant_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.CombatantID == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "combatant_id is required")
		return
	}

	result, err := h.combatSvc.Defend(r.Context(), encounterID, req.CombatantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
