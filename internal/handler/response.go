package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/internal/repository"
	"github.com/freeeve/natural-twenty/api/internal/service"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeValidation     = "VALIDATION"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeInvalidState   = "INVALID_STATE"
	CodeNotYourTurn    = "NOT_YOUR_TURN"
	CodeInvalidTarget  = "INVALID_TARGET"
	CodeCombatEnded    = "COMBAT_ENDED"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL"
)

// errorBody is the envelope for all error responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response with the given envelope code.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors onto the error envelope.
// Unrecognized errors become a 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dice.ErrInvalidExpression):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, dice.ErrOutOfRange),
		errors.Is(err, combat.ErrValidation):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, combat.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, CodeInvalidTarget, err.Error())
	case errors.Is(err, service.ErrAdventureNotFound),
		errors.Is(err, service.ErrEncounterNotFound),
		errors.Is(err, service.ErrCharacterNotFound),
		errors.Is(err, service.ErrEnemyNotFound),
		errors.Is(err, service.ErrCombatantNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, service.ErrNotYourTurn):
		writeError(w, http.StatusConflict, CodeNotYourTurn, err.Error())
	case errors.Is(err, service.ErrCombatEnded):
		writeError(w, http.StatusConflict, CodeCombatEnded, err.Error())
	case errors.Is(err, combat.ErrInvalidState):
		writeError(w, http.StatusConflict, CodeInvalidState, err.Error())
	case errors.Is(err, service.ErrCombatInProgress),
		errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
