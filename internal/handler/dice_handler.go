package handler

import (
	"net/http"
	"strconv"

	"github.com/freeeve/natural-twenty/api/internal/service"
)

// DiceHandler handles dice rolling endpoints.
type DiceHandler struct {
	diceSvc *service.DiceService
}

// NewDiceHandler creates a DiceHandler.
func NewDiceHandler(diceSvc *service.DiceService) *DiceHandler {
	return &DiceHandler{diceSvc: diceSvc}
}

// Roll handles POST /api/v1/dice/roll
func (h *DiceHandler) Roll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression string `json:"expression"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Expression == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "expression is required")
		return
	}

	roll, err := h.diceSvc.Roll(req.Expression)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}

// Validate handles POST /api/v1/dice/validate
func (h *DiceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression string `json:"expression"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Expression == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "expression is required")
		return
	}

	parsed, err := h.diceSvc.Validate(req.Expression)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

// Stats handles GET /api/v1/dice/stats
func (h *DiceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	expression := r.URL.Query().Get("expression")
	if expression == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "expression is required")
		return
	}

	stats, err := h.diceSvc.Stats(expression)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RollForAdventure handles POST /api/v1/adventures/{id}/rolls
func (h *DiceHandler) RollForAdventure(w http.ResponseWriter, r *http.Request) {
	adventureID := r.PathValue("id")

	var req struct {
		Expression string `json:"expression"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Expression == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "expression is required")
		return
	}

	roll, err := h.diceSvc.RollForAdventure(r.Context(), adventureID, req.Expression)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}

// RecentRolls handles GET /api/v1/adventures/{id}/rolls
func (h *DiceHandler) RecentRolls(w http.ResponseWriter, r *http.Request) {
	adventureID := r.PathValue("id")

	limit := int64(20)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, CodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rolls, err := h.diceSvc.RecentRolls(r.Context(), adventureID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rolls == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, rolls)
}
