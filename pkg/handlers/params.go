package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// wildcardFields names the field reported for each path wildcard in error
// codes and messages.
var wildcardFields = map[string]string{
	"id":  "id",
	"pid": "project_id",
}

// ParseID reads the {id} wildcard. On failure a 400 invalid_id response has
// been written.
func ParseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return pathUUID(w, r, "id", logger)
}

// ParseProjectID reads the {pid} wildcard.
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return pathUUID(w, r, "pid", logger)
}

func pathUUID(w http.ResponseWriter, r *http.Request, wildcard string, logger *zap.Logger) (uuid.UUID, bool) {
	field := wildcardFields[wildcard]
	raw := r.PathValue(wildcard)

	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		logger.Debug("Rejected path identifier", zap.String(field, raw))
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a non-nil UUID", logger)
		return uuid.Nil, false
	}
	return id, true
}
