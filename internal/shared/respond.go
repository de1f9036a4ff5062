package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type successEnvelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

// RespondJSON writes a success envelope. Every public operation answers
// with a discriminated ok/error value, never a bare message.
func RespondJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successEnvelope{OK: true, Data: data}); err != nil && logger != nil {
		logger.Error("encode response", slog.Any("error", err))
	}
}

// RespondError writes an error envelope using the error's HTTP-equivalent
// status.
func RespondError(logger *slog.Logger, w http.ResponseWriter, appErr *Error) {
	if appErr == nil {
		appErr = Internal(nil, "unexpected error")
	}
	status := appErr.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorEnvelope{Error: errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}}
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("encode error response", slog.Any("error", err))
	}
}
