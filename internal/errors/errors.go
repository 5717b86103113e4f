// Package errors provides the error taxonomy of the node and its HTTP mapping.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

var (
	// ErrNotEnoughReplicas is returned when fewer than ack replicas can still succeed
	ErrNotEnoughReplicas = errors.New("not enough replicas")
	// ErrInvalidParams is returned for ack/from values outside 1 <= ack <= from <= cluster size
	ErrInvalidParams = errors.New("invalid replication parameters")
	// ErrKeyRequired is returned when a request carries no key
	ErrKeyRequired = errors.New("key is required")
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// General errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeTimeout        ErrorCode = "TIMEOUT"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"

	// Replication errors
	ErrorCodeNotEnoughReplicas ErrorCode = "NOT_ENOUGH_REPLICAS"
	ErrorCodeInvalidParams     ErrorCode = "INVALID_REPLICATION_PARAMS"
	ErrorCodeKeyNotFound       ErrorCode = "KEY_NOT_FOUND"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError maps err to a status and error code and writes the response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, errorCode := Classify(err)
	h.WriteErrorResponse(w, statusCode, errorCode, err.Error(), r.Header.Get("X-Request-ID"))
}

// Classify converts an error into an HTTP status code and an error code.
func Classify(err error) (int, ErrorCode) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrNotEnoughReplicas):
		return http.StatusGatewayTimeout, ErrorCodeNotEnoughReplicas
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ErrorCodeTimeout
	case errors.Is(err, ErrInvalidParams):
		return http.StatusBadRequest, ErrorCodeInvalidParams
	case errors.Is(err, ErrKeyRequired):
		return http.StatusBadRequest, ErrorCodeInvalidRequest
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
