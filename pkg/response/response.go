// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse carries one of the error codes from pkg/errors.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON wraps data in the envelope; success follows the status class.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Fail sends an error response with a machine readable code.
func Fail(w http.ResponseWriter, status int, code, message string) {
	write(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// InternalServerError hides the cause from the client.
func InternalServerError(w http.ResponseWriter) {
	Fail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("encoding response failed", zap.Int("status", status), zap.Error(err))
	}
}
