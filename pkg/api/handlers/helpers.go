package handlers

import (
	"errors"
	"net/http"

	"msgsync/pkg/models"
	"msgsync/pkg/utils"
)

// writeErr maps the engine's error taxonomy onto transport status codes.
// Conflict never appears here: the thread store resolves creation races
// internally.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrPermissionDenied):
		utils.JSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInvalidParticipants),
		errors.Is(err, models.ErrInvalidReference),
		errors.Is(err, models.ErrInvalidContent):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTransient):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
