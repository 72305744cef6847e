package types

import (
	"fmt"

	"github.com/google/uuid"
)

// FlowDef describes an input flow. Sending a CodedBuffer with a non-nil
// FlowDef reconfigures the receiver.
type FlowDef struct {
	ID             uuid.UUID
	Codec          CodecID
	Encapsulation  Encapsulation
	CompleteFrames bool
	GlobalHeaders  []byte
	Latency        uint64
}

// NewFlowDef returns a FlowDef with a fresh ID.
func NewFlowDef(codec CodecID, encaps Encapsulation) *FlowDef {
	return &FlowDef{
		ID:            uuid.New(),
		Codec:         codec,
		Encapsulation: encaps,
	}
}

func (d *FlowDef) String() string {
	if d == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"flow{id:%s, codec:%s, encaps:%s, complete:%t, headers:%d, latency:%d}",
		d.ID, d.Codec, d.Encapsulation, d.CompleteFrames, len(d.GlobalHeaders), d.Latency,
	)
}

// CodedBuffer is a chunk of coded stream as received from upstream.
type CodedBuffer struct {
	Payload       []byte
	Dates         Dates
	Discontinuity bool
	Random        bool
	FlowDef       *FlowDef
}

func (b *CodedBuffer) String() string {
	if b == nil {
		return "<nil>"
	}
	if b.FlowDef != nil {
		return b.FlowDef.String()
	}
	return fmt.Sprintf("buffer{size:%d, dates:%s, discontinuity:%t}", len(b.Payload), b.Dates, b.Discontinuity)
}
