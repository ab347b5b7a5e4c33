package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tunetrail/backend/internal/entity"
)

// decodeJSON decodes r's body into v, reporting any malformed-body error as
// entity.ErrValidationFailed so RespondError maps it to 400 VALIDATION_FAILED
// rather than an opaque 500.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return entity.ErrValidationFailed
	}
	return nil
}

// queryInt parses the query parameter name as an int, returning def if it is
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
