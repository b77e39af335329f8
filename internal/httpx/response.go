package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"status": "ok"}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindInvalidInput:      http.StatusBadRequest,
	apperr.KindInvalidQuantity:   http.StatusBadRequest,
	apperr.KindInvalidRating:     http.StatusBadRequest,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidState:      http.StatusConflict,
	apperr.KindNotAvailable:      http.StatusConflict,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindDuplicateReview:   http.StatusConflict,
}

// writeFail renders err as {"status":"fail","kind":...,"message":...}.
// Internal failures keep their cause out of the body; the request id is the
// diagnostic that ties the response to the log line.
func writeFail(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	body := map[string]any{
		"status":  "fail",
		"kind":    kind,
		"message": apperr.MessageOf(err),
	}
	code, ok := statusByKind[kind]
	if !ok {
		code = http.StatusInternalServerError
		reqID := middleware.GetReqID(r.Context())
		body["diagnostic"] = "request " + reqID
		log.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
	}
	writeJSON(w, code, body)
}
