package model

import (
	"fmt"
	"net/http"
)

// Method is the kind of operation a client request performs on an entity
type Method string

const (
	// MethodRead reads the value stored under a key
	MethodRead Method = "read"
	// MethodWrite stores a value under a key
	MethodWrite Method = "write"
	// MethodDelete removes the value stored under a key
	MethodDelete Method = "delete"
)

// MethodFromHTTP maps an HTTP verb to a method kind
func MethodFromHTTP(verb string) (Method, error) {
	switch verb {
	case http.MethodGet:
		return MethodRead, nil
	case http.MethodPut:
		return MethodWrite, nil
	case http.MethodDelete:
		return MethodDelete, nil
	default:
		return "", fmt.Errorf("unsupported method %q", verb)
	}
}

// HTTPVerb returns the HTTP verb used to issue the method to a replica
func (m Method) HTTPVerb() string {
	switch m {
	case MethodWrite:
		return http.MethodPut
	case MethodDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// ReplicaRequest describes one logical client operation.
// It is created once per incoming request and never mutated afterwards.
type ReplicaRequest struct {
	Method    Method
	Key       []byte
	Body      []byte // nil for reads and deletes
	Timestamp int64  // write timestamp in unix milliseconds, shared by all replicas
	Ack       int
	From      int
}

// HasBody reports whether the request carries a non-empty body
func (r *ReplicaRequest) HasBody() bool {
	return len(r.Body) > 0
}

// StatusSet is a set of HTTP status codes a replica may answer with
type StatusSet map[int]struct{}

// NewStatusSet builds a status set from the given codes
func NewStatusSet(codes ...int) StatusSet {
	set := make(StatusSet, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Contains reports whether code is part of the set
func (s StatusSet) Contains(code int) bool {
	_, ok := s[code]
	return ok
}

// SuccessCodes maps every method kind to the replica statuses counted as success.
// It is built once at startup and read-only afterwards.
type SuccessCodes map[Method]StatusSet

// DefaultSuccessCodes returns the status table used between nodes:
// reads accept found and not found, writes accept created, deletes accept accepted.
func DefaultSuccessCodes() SuccessCodes {
	return SuccessCodes{
		MethodRead:   NewStatusSet(http.StatusOK, http.StatusNotFound),
		MethodWrite:  NewStatusSet(http.StatusCreated),
		MethodDelete: NewStatusSet(http.StatusAccepted),
	}
}

// For returns the success set for a method. Unknown methods get an empty set.
func (c SuccessCodes) For(method Method) StatusSet {
	if set, ok := c[method]; ok {
		return set
	}
	return StatusSet{}
}
