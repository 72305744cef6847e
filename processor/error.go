package processor

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("processor is closed")

type ErrFramer struct {
	Err error
}

func (e ErrFramer) Error() string {
	return fmt.Sprintf("framer failed: %v", e.Err)
}

func (e ErrFramer) Unwrap() error {
	return e.Err
}
