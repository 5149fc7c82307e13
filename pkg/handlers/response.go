package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// maxJSONBody bounds request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

// ApiResponse wraps successful responses.
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse is the data of every list endpoint. Count is the number of
// items in this page; a full page means more may follow.
type ListResponse[T any] struct {
	Items  []*T `json:"items"`
	Count  int  `json:"count"`
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
}

func newListResponse[T any](items []*T, page models.Page) ListResponse[T] {
	return ListResponse[T]{Items: items, Count: len(items), Limit: page.Limit, Offset: page.Offset}
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData writes data wrapped in a successful ApiResponse.
func writeData(w http.ResponseWriter, statusCode int, data interface{}, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response, logging encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto its kind and status. Internal
// errors are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	kind := apperrors.Kind(err)
	status := apperrors.HTTPStatus(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		message = "An internal error occurred"
	} else {
		logger.Debug("Request rejected", zap.String("kind", kind), zap.Error(err))
	}
	writeError(w, status, kind, message, logger)
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, "invalid_request", msg, logger)
		return false
	}
	return true
}

// callerFrom returns the caller resolved by the auth middleware.
func callerFrom(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Caller, bool) {
	caller, ok := models.GetCaller(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", logger)
		return models.Caller{}, false
	}
	return caller, true
}

// parsePage reads limit and offset query parameters.
func parsePage(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Page, bool) {
	var page models.Page
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid "+name+" parameter", logger)
			return models.Page{}, false
		}
		*dst = n
	}
	return page, true
}
