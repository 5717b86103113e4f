package service

import (
	"context"
	"sync/atomic"
)

// Outcome is the write-once result of a replicated request.
// It is resolved exactly once, either with the collected replica values or
// with an error.
type Outcome struct {
	done     chan struct{}
	resolved atomic.Bool
	values   [][]byte
	err      error
}

func newOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// resolve stores the result if the outcome is still open and reports
// whether this call won.
func (o *Outcome) resolve(values [][]byte, err error) bool {
	if !o.resolved.CompareAndSwap(false, true) {
		return false
	}
	o.values = values
	o.err = err
	close(o.done)
	return true
}

// Done is closed once the outcome is resolved
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Resolved reports whether the outcome has been resolved
func (o *Outcome) Resolved() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the outcome is resolved or ctx is done.
// Values are in success order; their count is between ack and from.
func (o *Outcome) Wait(ctx context.Context) ([][]byte, error) {
	select {
	case <-o.done:
		return o.values, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
