package panel

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail writes err with the status its code maps to. Non-SOP errors are
// reported as 500 and logged.
func (s *PanelServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	var sopErr *schema.SOPError
	if !errors.As(err, &sopErr) {
		logging.LogWith(r.Context(), s.deps.Logger).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := statusFor(sopErr.Code)
	if status >= http.StatusInternalServerError {
		logging.LogWith(r.Context(), s.deps.Logger).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "code", sopErr.Code, "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:   sopErr.Message,
		Code:    sopErr.Code,
		NodeID:  sopErr.NodeID,
		Details: sopErr.Details,
	})
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeDecode, schema.ErrCodeValidation:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeEmptyWorkflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// readBody reads a size-capped request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return schema.NewError(schema.ErrCodeDecode, "invalid JSON: "+err.Error()).WithCause(err)
	}
	return nil
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
