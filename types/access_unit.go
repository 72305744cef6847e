package types

import (
	"fmt"

	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/xaionaro-go/typing"
)

// PicStruct is the picture structure (Table D-1 of ISO/IEC 14496-10,
// Table D.2 of ISO/IEC 23008-2).
type PicStruct int

const (
	PicStructFrame            = PicStruct(0)
	PicStructTop              = PicStruct(1)
	PicStructBottom           = PicStruct(2)
	PicStructTopBottom        = PicStruct(3)
	PicStructBottomTop        = PicStruct(4)
	PicStructTopBottomTop     = PicStruct(5)
	PicStructBottomTopBottom  = PicStruct(6)
	PicStructDouble           = PicStruct(7)
	PicStructTriple           = PicStruct(8)
	PicStructTopPrevBottom    = PicStruct(9)
	PicStructBottomPrevTop    = PicStruct(10)
	PicStructTopNextBottom    = PicStruct(11)
	PicStructBottomNextTop    = PicStruct(12)
	picStructUnknownThreshold = PicStruct(13)
)

// DurationMultiplier returns the picture duration expressed in fields.
func (s PicStruct) DurationMultiplier() uint64 {
	switch s {
	case PicStructFrame,
		PicStructTopBottom, PicStructBottomTop:
		return 2
	case PicStructTop, PicStructBottom,
		PicStructTopPrevBottom, PicStructBottomPrevTop,
		PicStructTopNextBottom, PicStructBottomNextTop:
		return 1
	case PicStructTopBottomTop, PicStructBottomTopBottom:
		return 3
	case PicStructDouble:
		return 4
	case PicStructTriple:
		return 6
	default:
		return 2
	}
}

func (s PicStruct) IsValid() bool {
	return s >= 0 && s < picStructUnknownThreshold
}

// Fields returns top field, bottom field and top-field-first flags.
func (s PicStruct) Fields() (top, bottom, topFirst bool) {
	switch s {
	case PicStructTop, PicStructTopPrevBottom, PicStructTopNextBottom:
		return true, false, false
	case PicStructBottom, PicStructBottomPrevTop, PicStructBottomNextTop:
		return false, true, false
	case PicStructTopBottom, PicStructTopBottomTop:
		return true, true, true
	case PicStructBottomTop, PicStructBottomTopBottom:
		return true, true, false
	default:
		return true, true, true
	}
}

func (s PicStruct) String() string {
	switch s {
	case PicStructFrame:
		return "frame"
	case PicStructTop:
		return "top"
	case PicStructBottom:
		return "bottom"
	case PicStructTopBottom:
		return "top_bottom"
	case PicStructBottomTop:
		return "bottom_top"
	case PicStructTopBottomTop:
		return "top_bottom_top"
	case PicStructBottomTopBottom:
		return "bottom_top_bottom"
	case PicStructDouble:
		return "double"
	case PicStructTriple:
		return "triple"
	case PicStructTopPrevBottom:
		return "top_prev_bottom"
	case PicStructBottomPrevTop:
		return "bottom_prev_top"
	case PicStructTopNextBottom:
		return "top_next_bottom"
	case PicStructBottomNextTop:
		return "bottom_next_top"
	default:
		return fmt.Sprintf("<unknown_pic_struct_%d>", int(s))
	}
}

// CaptionPair is a CEA-608 byte pair or a CEA-708 (DTVCC) packet byte pair
// carried in SEI user data.
type CaptionPair struct {
	DTVCC   bool
	Start   bool
	Channel int
	Field   int
	Data    [2]byte
}

// AccessUnit is one coded picture with all of its NAL units.
type AccessUnit struct {
	Payload       []byte
	Encapsulation Encapsulation
	Codec         CodecID

	// HeaderSize is the amount of bytes preceding the first VCL NAL unit.
	HeaderSize int

	SliceType     int
	Key           bool
	Random        bool
	Error         bool
	PicStruct     PicStruct
	Progressive   bool
	TopField      bool
	BottomField   bool
	TopFieldFirst bool
	PictureNumber uint64
	NALCount      int

	Duration              typing.Optional[uint64]
	DTS                   [EndOfClockDomain]typing.Optional[uint64]
	DTSPTSDelay           typing.Optional[uint64]
	RAP                   typing.Optional[uint64]
	Rate                  Rational
	TimestampApproximated bool

	Captions []CaptionPair
}

// PTS returns the presentation timestamp in the given clock domain.
func (au *AccessUnit) PTS(domain ClockDomain) typing.Optional[uint64] {
	dts := au.DTS[domain]
	if !dts.IsSet() || !au.DTSPTSDelay.IsSet() {
		return typing.Optional[uint64]{}
	}
	return typing.Opt(dts.Get() + au.DTSPTSDelay.Get())
}

func (au *AccessUnit) Fields() field.Fields {
	fields := field.Fields{
		{Key: "size", Value: len(au.Payload)},
		{Key: "encaps", Value: au.Encapsulation},
		{Key: "key", Value: au.Key},
		{Key: "random", Value: au.Random},
		{Key: "pic_struct", Value: au.PicStruct},
		{Key: "pic_number", Value: au.PictureNumber},
		{Key: "nals", Value: au.NALCount},
	}
	if au.Duration.IsSet() {
		fields = append(fields, field.Field{Key: "duration", Value: au.Duration.Get()})
	}
	for domain, dts := range au.DTS {
		if dts.IsSet() {
			fields = append(fields, field.Field{Key: "dts_" + ClockDomain(domain).String(), Value: dts.Get()})
		}
	}
	if au.DTSPTSDelay.IsSet() {
		fields = append(fields, field.Field{Key: "delay", Value: au.DTSPTSDelay.Get()})
	}
	if au.Error {
		fields = append(fields, field.Field{Key: "error", Value: true})
	}
	return fields
}

func (au *AccessUnit) String() string {
	if au == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"au{size:%d, key:%t, pic:%d, struct:%s, dts:%v, delay:%v}",
		len(au.Payload), au.Key, au.PictureNumber, au.PicStruct,
		au.DTS[ClockDomainSys], au.DTSPTSDelay,
	)
}
