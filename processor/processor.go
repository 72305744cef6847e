// Package processor runs framers as asynchronous pipeline stages
// connected through channels.
package processor

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/h26xframer/types"
)

type Abstract interface {
	fmt.Stringer
	Close(context.Context) error

	InputChan() chan<- *types.CodedBuffer
	OutputChan() <-chan types.Output
	ErrorChan() <-chan error

	CountersPtr() *Counters
}
