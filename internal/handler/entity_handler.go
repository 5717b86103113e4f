// Package handler provides the HTTP handlers of the node's entity API.
package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/devrev/pairdb/replicator/internal/algorithm"
	"github.com/devrev/pairdb/replicator/internal/client"
	apperrors "github.com/devrev/pairdb/replicator/internal/errors"
	"github.com/devrev/pairdb/replicator/internal/middleware"
	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/devrev/pairdb/replicator/internal/service"
	"go.uber.org/zap"
)

const defaultHintLimit = 100

// Executor replicates a request across its replicas
type Executor interface {
	Execute(ctx context.Context, req *model.ReplicaRequest, localWork service.LocalWork) *service.Outcome
}

// HintInspector reads pending hints
type HintInspector interface {
	HintsForNode(ctx context.Context, nodeID string, limit int) ([]*model.Hint, int64, error)
}

// EntityHandler serves entity requests, both from clients and from peer nodes.
type EntityHandler struct {
	executor       Executor
	entities       *service.EntityService
	quorum         *algorithm.QuorumCalculator
	hints          HintInspector
	errorHandler   *apperrors.Handler
	requestTimeout time.Duration
	maxBodySize    int64
	logger         *zap.Logger
	now            func() time.Time
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(
	executor Executor,
	entities *service.EntityService,
	quorum *algorithm.QuorumCalculator,
	hints HintInspector,
	errorHandler *apperrors.Handler,
	requestTimeout time.Duration,
	maxBodySize int64,
	logger *zap.Logger,
) *EntityHandler {
	return &EntityHandler{
		executor:       executor,
		entities:       entities,
		quorum:         quorum,
		hints:          hints,
		errorHandler:   errorHandler,
		requestTimeout: requestTimeout,
		maxBodySize:    maxBodySize,
		logger:         logger,
		now:            time.Now,
	}
}

// Entity handles GET, PUT and DELETE /v0/entity.
func (h *EntityHandler) Entity(w http.ResponseWriter, r *http.Request) {
	method, err := model.MethodFromHTTP(r.Method)
	if err != nil {
		h.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apperrors.ErrorCodeInvalidRequest, err.Error(), middleware.RequestIDFromContext(r.Context()))
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.errorHandler.HandleError(w, r, apperrors.ErrKeyRequired)
		return
	}

	var body []byte
	if method == model.MethodWrite {
		body, err = io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
		if err != nil {
			h.errorHandler.HandleError(w, r, fmt.Errorf("failed to read body: %w", err))
			return
		}
		if int64(len(body)) > h.maxBodySize {
			h.errorHandler.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, apperrors.ErrorCodeInvalidRequest, "body too large", middleware.RequestIDFromContext(r.Context()))
			return
		}
	}

	if r.Header.Get(client.HeaderReplicaRequest) == "true" {
		h.serveReplica(w, r, method, []byte(id), body)
		return
	}
	h.coordinate(w, r, method, []byte(id), body)
}

func (h *EntityHandler) coordinate(w http.ResponseWriter, r *http.Request, method model.Method, key, body []byte) {
	query := r.URL.Query()
	ack, from, err := h.quorum.Resolve(query.Get("ack"), query.Get("from"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req := &model.ReplicaRequest{
		Method:    method,
		Key:       key,
		Body:      body,
		Timestamp: h.now().UnixMilli(),
		Ack:       ack,
		From:      from,
	}

	outcome := h.executor.Execute(r.Context(), req, h.localWork(req))

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	values, err := outcome.Wait(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	switch method {
	case model.MethodRead:
		entry, ok := service.LatestEntry(values)
		if !ok {
			h.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apperrors.ErrorCodeKeyNotFound, "key not found", middleware.RequestIDFromContext(r.Context()))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(entry.Value)
	case model.MethodWrite:
		w.WriteHeader(http.StatusCreated)
	case model.MethodDelete:
		w.WriteHeader(http.StatusAccepted)
	}
}

// localWork builds the node's own replica operation for req
func (h *EntityHandler) localWork(req *model.ReplicaRequest) service.LocalWork {
	return func(ctx context.Context) ([]byte, error) {
		switch req.Method {
		case model.MethodRead:
			record, _, err := h.entities.Get(ctx, req.Key)
			return record, err
		case model.MethodWrite:
			return nil, h.entities.Put(ctx, req.Key, req.Body, req.Timestamp)
		case model.MethodDelete:
			return nil, h.entities.Delete(ctx, req.Key, req.Timestamp)
		default:
			return nil, fmt.Errorf("unsupported method %q", req.Method)
		}
	}
}

// serveReplica executes a peer's request against the local store only.
// Reads return the encoded record so the coordinator can merge replicas.
func (h *EntityHandler) serveReplica(w http.ResponseWriter, r *http.Request, method model.Method, key, body []byte) {
	timestamp := h.now().UnixMilli()
	if raw := r.Header.Get(client.HeaderEntityTimestamp); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.errorHandler.WriteErrorResponse(w, http.StatusBadRequest, apperrors.ErrorCodeInvalidRequest,
				"invalid "+client.HeaderEntityTimestamp+" header", middleware.RequestIDFromContext(r.Context()))
			return
		}
		timestamp = parsed
	}

	ctx := r.Context()
	switch method {
	case model.MethodRead:
		record, found, err := h.entities.Get(ctx, key)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(record)
	case model.MethodWrite:
		if err := h.entities.Put(ctx, key, body, timestamp); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case model.MethodDelete:
		if err := h.entities.Delete(ctx, key, timestamp); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// Range handles GET /v0/entities?start=<key>[&end=<key>].
// Live local entries are streamed in key order as key '\n' value '\n'.
func (h *EntityHandler) Range(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start := query.Get("start")
	if start == "" {
		h.errorHandler.HandleError(w, r, fmt.Errorf("%w: start", apperrors.ErrKeyRequired))
		return
	}
	var end []byte
	if raw := query.Get("end"); raw != "" {
		end = []byte(raw)
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	var writeErr error
	err := h.entities.Range(r.Context(), []byte(start), end, func(key, value []byte) bool {
		bw.Write(key)
		bw.WriteByte('\n')
		bw.Write(value)
		bw.WriteByte('\n')
		if writeErr = bw.Flush(); writeErr != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	})
	if err == nil {
		err = writeErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("Range stream aborted",
			zap.String("start", start),
			zap.ByteString("end", end),
			zap.Error(err))
	}
}

// HintsResponse is the body of GET /v0/hints.
type HintsResponse struct {
	Node  string        `json:"node"`
	Count int64         `json:"count"`
	Hints []*model.Hint `json:"hints"`
}

// Hints handles GET /v0/hints?node=<url>[&limit=<n>].
func (h *EntityHandler) Hints(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())
	query := r.URL.Query()

	node := query.Get("node")
	if node == "" {
		h.errorHandler.WriteErrorResponse(w, http.StatusBadRequest, apperrors.ErrorCodeInvalidRequest, "node is required", requestID)
		return
	}

	limit := defaultHintLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.errorHandler.WriteErrorResponse(w, http.StatusBadRequest, apperrors.ErrorCodeInvalidRequest, "limit must be a positive integer", requestID)
			return
		}
		limit = parsed
	}

	hints, count, err := h.hints.HintsForNode(r.Context(), node, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, HintsResponse{Node: node, Count: count, Hints: hints})
}

// writeJSONResponse writes a JSON response.
func (h *EntityHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
