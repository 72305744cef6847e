package framer

import (
	"context"

	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/typing"
)

// nalBegin tells what to do when a NAL unit starts.
type nalBegin struct {
	// CloseBefore requests the current access unit to be output before
	// this NAL unit, if it already contains a slice.
	CloseBefore bool

	// CloseAfter requests the access unit to be output right after this
	// NAL unit.
	CloseAfter bool

	// StartsVCL marks the end of the access unit header.
	StartsVCL bool
}

// auState is the per access unit state shared between the framer and the
// codec.
type auState struct {
	HasSlice       bool
	VCLOffset      int
	Random         bool
	Key            bool
	Error          bool
	SliceType      int
	CloseAfter     bool
	DropRanges     []byteRange
	NALCount       int
	PicStruct      typing.Optional[types.PicStruct]
	DPBOutputDelay typing.Optional[uint64]
	Captions       []types.CaptionPair
}

func (s *auState) Reset() {
	*s = auState{
		VCLOffset:  -1,
		SliceType:  -1,
		DropRanges: s.DropRanges[:0],
	}
}

// rapChain carries the date of the last random access point down to
// the parameter sets which depend on it.
type rapChain struct {
	DTS    typing.Optional[uint64]
	VPS    typing.Optional[uint64]
	SPS    typing.Optional[uint64]
	PPS    typing.Optional[uint64]
	IFrame typing.Optional[uint64]
}

// sharedState is owned by the framer and mutated by the codec.
type sharedState struct {
	AU  auState
	RAP rapChain

	// FormatChanged is set when a parameter set describing the stream
	// was (re)activated.
	FormatChanged bool

	ExtractCaptions bool
}

// codec is the codec-specific part of the framer.
type codec interface {
	ID() types.CodecID
	NALType(header byte) int
	IsSlice(nalType int) bool
	IsRandomAccess(nalType int) bool
	IsParameterSet(nalType int) bool
	IsAUD(nalType int) bool

	// BeginNAL is called with the header of a NAL unit which starts.
	BeginNAL(ctx context.Context, header []byte) nalBegin

	// HandleNAL parses a complete NAL unit. errBusy means the NAL unit
	// belongs to the next access unit.
	HandleNAL(ctx context.Context, nal []byte) error

	// PrepareAU fills the picture structure and the duration.
	PrepareAU(ctx context.Context, au *types.AccessUnit)

	// ActiveParameterSets returns the NAL units to re-insert before a key
	// access unit.
	ActiveParameterSets() [][]byte
	AUD() []byte

	StoreGlobalHeaders(ctx context.Context, nalus [][]byte)
	GlobalHeaders(encaps types.Encapsulation) []byte

	// VideoFormat describes the stream according to the active parameter
	// sets, or nil if there are none.
	VideoFormat() *types.VideoFormat
	FieldDuration() typing.Optional[uint64]
	MaxDecFrameBuffering() uint32

	// ResetAU forgets the slice state of the current access unit.
	ResetAU()
	Reset()
}

func newCodec(id types.CodecID, s *sharedState) (codec, error) {
	switch id {
	case types.CodecIDH264:
		return newH264(s), nil
	case types.CodecIDH265:
		return newH265(s), nil
	default:
		return nil, ErrUnsupportedCodec{Codec: id}
	}
}
