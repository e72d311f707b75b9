package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/happy-hops/choperia/internal/logging"
)

// ErrorResponse is the JSON error body. Detail repeats Error for clients
// that read the FastAPI-style field.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Detail  string                 `json:"detail"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// WriteJSON writes payload with status.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteErrorResponse writes a JSON error carrying the request trace id.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	resp := ErrorResponse{
		Error:   message,
		Detail:  message,
		Code:    code,
		Details: details,
	}
	if r != nil {
		resp.TraceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, status, resp)
}

// Unauthorized writes a 401 with message, defaulting to "Não autenticado".
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Não autenticado"
	}
	WriteErrorResponse(w, r, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}
