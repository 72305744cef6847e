package framer

import (
	"context"

	"github.com/xaionaro-go/h26xframer/types"
)

// FormatRequest is the output format a framer would like to produce.
type FormatRequest struct {
	Format             *types.VideoFormat
	InputEncapsulation types.Encapsulation
}

// FormatResponse is the output format granted by the downstream.
type FormatResponse struct {
	// Encapsulation of the emitted access units; unknown means Annex-B.
	Encapsulation types.Encapsulation

	// Allocator provides the buffers for access unit payloads; nil means
	// DefaultAllocator.
	Allocator Allocator
}

// FormatNegotiator decides on the output format of a framer.
//
// RequestFormat may answer right away, or return (nil, nil) and deliver
// the answer later through Framer.ResolveFormat. Until then the framer
// holds its output.
type FormatNegotiator interface {
	RequestFormat(ctx context.Context, req FormatRequest) (*FormatResponse, error)
}

// ImmediateNegotiator grants every request with a fixed encapsulation.
type ImmediateNegotiator struct {
	Encapsulation types.Encapsulation
	Allocator     Allocator
}

var _ FormatNegotiator = ImmediateNegotiator{}

func (n ImmediateNegotiator) RequestFormat(
	ctx context.Context,
	req FormatRequest,
) (*FormatResponse, error) {
	encaps := n.Encapsulation
	if encaps == types.EncapsulationUnknown {
		encaps = req.InputEncapsulation
	}
	return &FormatResponse{Encapsulation: encaps, Allocator: n.Allocator}, nil
}

// PendingNegotiator never answers right away; the answer has to be
// delivered with Framer.ResolveFormat.
type PendingNegotiator struct {
	OnRequest func(ctx context.Context, req FormatRequest)
}

var _ FormatNegotiator = PendingNegotiator{}

func (n PendingNegotiator) RequestFormat(
	ctx context.Context,
	req FormatRequest,
) (*FormatResponse, error) {
	if n.OnRequest != nil {
		n.OnRequest(ctx, req)
	}
	return nil, nil
}

// Allocator allocates the payload buffers of access units.
type Allocator interface {
	Allocate(ctx context.Context, size int) ([]byte, error)
}

type DefaultAllocator struct{}

var _ Allocator = DefaultAllocator{}

func (DefaultAllocator) Allocate(ctx context.Context, size int) ([]byte, error) {
	return make([]byte, size), nil
}
