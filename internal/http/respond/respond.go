// Package respond writes the JSON envelope shared by every API handler:
// {"success": true, ...} on success and {"success": false, "message": "..."} on failure.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// JSON writes payload as-is with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a success envelope merging fields into the body.
func OK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	JSON(w, status, body)
}

// Fail writes a failure envelope with a caller-safe message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "message": message})
}

// Error maps err to its status and writes the failure envelope. Internal errors are logged
// with full detail and reported generically.
func Error(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logging.OrDefault(logger).Error("request failed",
			"error", err,
			"kind", string(kind),
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	Fail(w, status, apperr.Message(err))
}

// Decode reads a JSON body into dst, rejecting unknown trailing data.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("request body required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid JSON body", err)
	}
	return nil
}
