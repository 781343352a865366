package handler

import (
	"net/http"

	"github.com/freeeve/natural-twenty/api/internal/auth"
	"github.com/freeeve/natural-twenty/api/internal/model"
	"github.com/freeeve/natural-twenty/api/internal/repository"
)

var adventureStatuses = map[string]bool{
	"active":    true,
	"completed": true,
	"abandoned": true,
}

// AdventureHandler handles adventure CRUD endpoints.
type AdventureHandler struct {
	adventureRepo repository.AdventureRepository
}

// NewAdventureHandler creates an AdventureHandler.
func NewAdventureHandler(adventureRepo repository.AdventureRepository) *AdventureHandler {
	return &AdventureHandler{adventureRepo: adventureRepo}
}

// CreateAdventure handles POST /api/v1/adventures
func (h *AdventureHandler) CreateAdventure(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "name is required")
		return
	}

	adventure, err := h.adventureRepo.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, adventure)
}

// ListAdventures handles GET /api/v1/adventures
func (h *AdventureHandler) ListAdventures(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	adventures, err := h.adventureRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if adventures == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, adventures)
}

// GetAdventure handles GET /api/v1/adventures/{id}
func (h *AdventureHandler) GetAdventure(w http.ResponseWriter, r *http.Request) {
	adventure, ok := h.ownedAdventure(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, adventure)
}

// UpdateAdventure handles PATCH /api/v1/adventures/{id}
func (h *AdventureHandler) UpdateAdventure(w http.ResponseWriter, r *http.Request) {
	adventure, ok := h.ownedAdventure(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if !adventureStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, CodeValidation, "status must be active, completed or abandoned")
		return
	}

	if err := h.adventureRepo.SetStatus(r.Context(), adventure.ID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	adventure.Status = req.Status
	writeJSON(w, http.StatusOK, adventure)
}

// DeleteAdventure handles DELETE /api/v1/adventures/{id}
func (h *AdventureHandler) DeleteAdventure(w http.ResponseWriter, r *http.Request) {
	adventure, ok := h.ownedAdventure(w, r)
	if !ok {
		return
	}

	if err := h.adventureRepo.Delete(r.Context(), adventure.ID); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedAdventure loads the adventure in the path and checks the caller
// owns it. On failure it writes the error response and returns ok=false.
func (h *AdventureHandler) ownedAdventure(w http.ResponseWriter, r *http.Request) (*model.Adventure, bool) {
	adventureID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	adventure, err := h.adventureRepo.FindByID(r.Context(), adventureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return nil, false
	}
	if adventure == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "adventure not found")
		return nil, false
	}
	if adventure.UserID != userID {
		writeError(w, http.StatusForbidden, CodeUnauthorized, "adventure belongs to another user")
		return nil, false
	}
	return adventure, true
}
