package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"world-state-engine/internal/core/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     domain.Code       `json:"code"`
	Message  string            `json:"message"`
	Details  []string          `json:"details,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func statusFor(code domain.Code) int {
	switch code.Kind() {
	case domain.KindStructural:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindApprovalRequired:
		return http.StatusForbidden
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: errorDetail{Code: "INTERNAL", Message: http.StatusText(status)}})
		return
	}

	status := statusFor(de.Code)
	if status == http.StatusServiceUnavailable {
		if at, perr := time.Parse(time.RFC3339, de.Metadata["expected_resume_at"]); perr == nil {
			if secs := int(time.Until(at).Seconds()); secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
		}
	}

	detail := errorDetail{Code: de.Code, Message: de.Message, Metadata: de.Metadata}
	if de.Code == domain.CodeInvalidRequest && de.Cause != nil {
		detail.Details = strings.Split(de.Cause.Error(), "\n")
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
