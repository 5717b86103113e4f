package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	// HeaderReplicaRequest marks a request that must be served locally only
	HeaderReplicaRequest = "X-Replica-Request"
	// HeaderEntityTimestamp carries the write timestamp in unix milliseconds
	HeaderEntityTimestamp = "X-Entity-Timestamp"

	// EntityPath is the entity endpoint served by every node
	EntityPath = "/v0/entity"

	maxResponseSize = 64 << 20
)

// ErrServerError is returned for 5xx replica answers, which count against
// the node's circuit breaker.
var ErrServerError = errors.New("replica server error")

// ReplicaResponse is the answer of a replica
type ReplicaResponse struct {
	NodeID     string
	StatusCode int
	Body       []byte
}

// BreakerSettings configures the per-node circuit breakers
type BreakerSettings struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// ReplicaClient sends replica requests to peer nodes over HTTP
type ReplicaClient struct {
	httpClient *http.Client
	timeout    time.Duration
	breaker    BreakerSettings
	logger     *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewReplicaClient creates a replica client. timeout bounds every call.
func NewReplicaClient(timeout time.Duration, breaker BreakerSettings, logger *zap.Logger) *ReplicaClient {
	return &ReplicaClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:  timeout,
		breaker:  breaker,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Call issues req to shard. Any HTTP status is returned as a response;
// transport failures, timeouts and open breakers are returned as errors.
func (c *ReplicaClient) Call(ctx context.Context, shard model.Shard, req *model.ReplicaRequest) (*ReplicaResponse, error) {
	if !c.breaker.Enabled {
		return c.do(ctx, shard, req)
	}

	cb := c.breakerFor(shard.NodeID())
	var resp *ReplicaResponse
	_, err := cb.Execute(func() (interface{}, error) {
		var callErr error
		resp, callErr = c.do(ctx, shard, req)
		if callErr != nil {
			return nil, callErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
		}
		return nil, nil
	})
	if errors.Is(err, ErrServerError) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ReplicaClient) do(ctx context.Context, shard model.Shard, req *model.ReplicaRequest) (*ReplicaResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := shard.URL + EntityPath + "?id=" + url.QueryEscape(string(req.Key))

	var body io.Reader
	if req.HasBody() {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method.HTTPVerb(), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build replica request: %w", err)
	}
	httpReq.Header.Set(HeaderReplicaRequest, "true")
	httpReq.Header.Set(HeaderEntityTimestamp, strconv.FormatInt(req.Timestamp, 10))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replica %s: %w", shard.URL, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read replica %s response: %w", shard.URL, err)
	}

	return &ReplicaResponse{
		NodeID:     shard.NodeID(),
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
	}, nil
}

func (c *ReplicaClient) breakerFor(nodeID string) *gobreaker.CircuitBreaker {
	c.mu.RLock()
	cb, ok := c.breakers[nodeID]
	c.mu.RUnlock()
	if ok {
		return cb
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[nodeID]; ok {
		return cb
	}

	minRequests := c.breaker.MinRequests
	ratio := c.breaker.FailureRatio
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        nodeID,
		MaxRequests: c.breaker.MaxRequests,
		Interval:    c.breaker.Interval,
		Timeout:     c.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("Replica circuit breaker changed state",
				zap.String("node_id", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	c.breakers[nodeID] = cb
	return cb
}

// BreakerState returns the breaker state for nodeID, or "disabled"
func (c *ReplicaClient) BreakerState(nodeID string) string {
	if !c.breaker.Enabled {
		return "disabled"
	}
	return c.breakerFor(nodeID).State().String()
}

// BreakerStates returns the breaker state of each node in nodeIDs
func (c *ReplicaClient) BreakerStates(nodeIDs []string) map[string]string {
	states := make(map[string]string, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		states[nodeID] = c.BreakerState(nodeID)
	}
	return states
}
