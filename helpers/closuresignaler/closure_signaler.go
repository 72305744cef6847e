// Package closuresignaler provides a close-once signal which remembers
// why the resource was closed.
package closuresignaler

import (
	"context"
	"errors"
	"sync"

	"github.com/xaionaro-go/h26xframer/logger"
)

var ErrClosed = errors.New("closed")

type ClosureSignaler struct {
	closeOnce sync.Once
	c         chan struct{}
	cause     error
}

func New() *ClosureSignaler {
	return &ClosureSignaler{
		c: make(chan struct{}),
	}
}

func (c *ClosureSignaler) CloseChan() <-chan struct{} {
	return c.c
}

// Close is CloseWithCause with ErrClosed.
func (c *ClosureSignaler) Close(ctx context.Context) {
	c.CloseWithCause(ctx, ErrClosed)
}

// CloseWithCause closes the signal channel. Only the first call has
// an effect, later causes are ignored.
func (c *ClosureSignaler) CloseWithCause(ctx context.Context, cause error) {
	if cause == nil {
		cause = ErrClosed
	}
	c.closeOnce.Do(func() {
		logger.Debugf(ctx, "closing: %v", cause)
		c.cause = cause
		close(c.c)
	})
}

func (c *ClosureSignaler) IsClosed() bool {
	select {
	case <-c.c:
		return true
	default:
		return false
	}
}

// Cause returns the error the signaler was closed with, or nil
// if it is still open.
func (c *ClosureSignaler) Cause() error {
	if !c.IsClosed() {
		return nil
	}
	return c.cause
}
