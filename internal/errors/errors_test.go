package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		errorCode  ErrorCode
	}{
		{"not enough replicas", ErrNotEnoughReplicas, http.StatusGatewayTimeout, ErrorCodeNotEnoughReplicas},
		{"wrapped not enough replicas", fmt.Errorf("write: %w", ErrNotEnoughReplicas), http.StatusGatewayTimeout, ErrorCodeNotEnoughReplicas},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout},
		{"invalid params", fmt.Errorf("ack=4: %w", ErrInvalidParams), http.StatusBadRequest, ErrorCodeInvalidParams},
		{"missing key", ErrKeyRequired, http.StatusBadRequest, ErrorCodeInvalidRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusCode, errorCode := Classify(tt.err)
			assert.Equal(t, tt.statusCode, statusCode)
			assert.Equal(t, tt.errorCode, errorCode)
		})
	}
}

func TestHandleError(t *testing.T) {
	h := NewHandler(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v0/entity?id=k", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()

	h.HandleError(w, req, ErrNotEnoughReplicas)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrorCodeNotEnoughReplicas, resp.ErrorCode)
	assert.Equal(t, "req-1", resp.RequestID)
}
