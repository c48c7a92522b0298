package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// JSONResponse sends a JSON response with the given status code
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse sends a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error":   message,
		"success": false,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	JSONResponse(w, statusCode, response)
}

// SuccessResponse sends a JSON success response
func SuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	response := map[string]interface{}{
		"message": message,
		"success": true,
	}
	if data != nil {
		response["data"] = data
	}
	JSONResponse(w, http.StatusOK, response)
}

// DecodeJSON decodes JSON from request body
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// errStatus maps domain errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrUnknownSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryInt reads an integer query parameter, falling back on parse errors.
func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

// queryBool reads a boolean query parameter, false on absence or junk.
func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// queryTime reads an RFC3339 query parameter, zero time on absence or junk.
func queryTime(r *http.Request, name string) time.Time {
	if raw := r.URL.Query().Get(name); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
