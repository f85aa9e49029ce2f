package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/computejobd/computejobd/internal/dispatch"
)

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes body verbatim as a JSON response body: handler
// results are already JSON text, so re-encoding them would double
// escape the payload.
func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

type errorBody struct {
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// writeError maps err to a status code and body per spec.md §7. A
// *dispatch.Error carries its own Kind; anything else is a bug and
// surfaces as 500.
func writeError(w http.ResponseWriter, err error) {
	dispatchErr, ok := err.(*dispatch.Error)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	status := dispatch.HTTPStatus(dispatchErr.Kind)
	body := errorBody{Error: dispatchErr.Message}
	if dispatchErr.Kind == dispatch.KindNotCancelable {
		writeJSON(w, status, statusBody{Status: "not_cancelable"})
		return
	}
	if dispatchErr.Kind == dispatch.KindFull {
		body.RetryAfterMs = dispatchErr.RetryAfterMs
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

type statusBody struct {
	Status string `json:"status"`
}
