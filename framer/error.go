package framer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid is returned for malformed or unusable bitstream elements.
	ErrInvalid = errors.New("invalid bitstream element")

	// ErrAlloc is returned when an output buffer could not be allocated
	// or the output format was refused; the framer cannot continue.
	ErrAlloc = errors.New("unable to allocate the output")

	ErrClosed = errors.New("framer is closed")

	// errBusy means the NAL unit belongs to the next access unit, which
	// has to be output before the NAL unit is handled again.
	errBusy = errors.New("access unit is complete")
)

type ErrInvalidParameterSetID struct {
	Type string
	ID   uint32
	Max  uint32
}

func (e ErrInvalidParameterSetID) Error() string {
	return fmt.Sprintf("%s id %d is out of range (max %d)", e.Type, e.ID, e.Max-1)
}

func (e ErrInvalidParameterSetID) Unwrap() error {
	return ErrInvalid
}

type ErrMissingParameterSet struct {
	Type string
	ID   uint32
}

func (e ErrMissingParameterSet) Error() string {
	return fmt.Sprintf("%s %d was never received", e.Type, e.ID)
}

func (e ErrMissingParameterSet) Unwrap() error {
	return ErrInvalid
}

type ErrUnsupportedCodec struct {
	Codec fmt.Stringer
}

func (e ErrUnsupportedCodec) Error() string {
	return fmt.Sprintf("codec %s is not supported", e.Codec)
}

// ErrNegotiation wraps a failure reported by a FormatNegotiator.
type ErrNegotiation struct {
	Err error
}

func (e ErrNegotiation) Error() string {
	return fmt.Sprintf("unable to negotiate the output format: %v", e.Err)
}

func (e ErrNegotiation) Unwrap() []error {
	return []error{ErrAlloc, e.Err}
}

// invalidf returns an ErrInvalid-wrapping error.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
