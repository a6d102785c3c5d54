package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
)

// errorBody is the wire shape for every non-2xx response. The message is
// always the Coordinator's safe, pre-sanitized text (spec §7) — this layer
// never appends store internals.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForCode is the single place that knows the Code -> HTTP status
// mapping (spec §7 table).
func statusForCode(code model.Code) int {
	switch code {
	case model.CodeInvalidToken:
		return http.StatusNotFound
	case model.CodeMailboxNotFound:
		return http.StatusNotFound
	case model.CodeSessionExpired:
		return http.StatusGone
	case model.CodeAlreadyPaired:
		return http.StatusConflict
	case model.CodeNoPeer:
		return http.StatusConflict
	case model.CodeTokenConflict:
		return http.StatusConflict
	case model.CodeUnauthorizedSession:
		return http.StatusUnauthorized
	case model.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err *model.Error) {
	writeJSON(w, statusForCode(err.Code), errorBody{Code: string(err.Code), Message: err.Message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
