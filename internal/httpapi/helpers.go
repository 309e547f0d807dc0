package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/propai/propai/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeValidationErrors reports all validation problems at once.
func writeValidationErrors(w http.ResponseWriter, errs []string) {
	writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": errs})
}

// writePropError maps structured error codes onto HTTP statuses.
func writePropError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case schema.IsCode(err, schema.ErrCodeNotFound),
		schema.IsCode(err, schema.ErrCodeWorkflowNotFound),
		schema.IsCode(err, schema.ErrCodeToolNotRegistered):
		status = http.StatusNotFound
	case schema.IsCode(err, schema.ErrCodeValidation),
		schema.IsCode(err, schema.ErrCodeUnsupportedEvent):
		status = http.StatusBadRequest
	case schema.IsCode(err, schema.ErrCodeConflict):
		status = http.StatusConflict
	case schema.IsCode(err, schema.ErrCodeToolDisabled),
		schema.IsCode(err, schema.ErrCodeToolNotPermitted):
		status = http.StatusForbidden
	}
	writeError(w, status, err.Error())
}

// decodeBody decodes a JSON request body into a generic map.
func decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if r.Body == nil {
		return map[string]any{}, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// pathInt64 parses a numeric path segment.
func pathInt64(r *http.Request, key string) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
