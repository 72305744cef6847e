package types

import (
	"bytes"
	"fmt"
)

// VideoFormat describes the elementary stream produced by a framer.
type VideoFormat struct {
	Def           string
	Codec         CodecID
	Encapsulation Encapsulation

	Profile      int
	ProfileSpace int
	Tier         int
	Level        int

	Width  uint64
	Height uint64

	PixelFormat     string
	ChromaFormatIDC int
	LumaBitDepth    int
	ChromaBitDepth  int

	FPS      Rational
	SAR      Rational
	Overscan *bool

	VideoFormat             string
	FullRange               bool
	ColourPrimaries         string
	TransferCharacteristics string
	MatrixCoefficients      string

	OctetRate     uint64
	BufferSize    uint64
	MaxOctetRate  uint64
	MaxBufferSize uint64

	LowDelay    bool
	Progressive bool
	Latency     uint64

	GlobalHeaders []byte
}

// Equal reports whether two formats describe the same stream.
func (f *VideoFormat) Equal(other *VideoFormat) bool {
	if f == nil || other == nil {
		return f == other
	}
	if (f.Overscan == nil) != (other.Overscan == nil) {
		return false
	}
	if f.Overscan != nil && *f.Overscan != *other.Overscan {
		return false
	}
	return f.Def == other.Def &&
		f.Codec == other.Codec &&
		f.Encapsulation == other.Encapsulation &&
		f.Profile == other.Profile &&
		f.ProfileSpace == other.ProfileSpace &&
		f.Tier == other.Tier &&
		f.Level == other.Level &&
		f.Width == other.Width &&
		f.Height == other.Height &&
		f.PixelFormat == other.PixelFormat &&
		f.ChromaFormatIDC == other.ChromaFormatIDC &&
		f.LumaBitDepth == other.LumaBitDepth &&
		f.ChromaBitDepth == other.ChromaBitDepth &&
		f.FPS == other.FPS &&
		f.SAR == other.SAR &&
		f.VideoFormat == other.VideoFormat &&
		f.FullRange == other.FullRange &&
		f.ColourPrimaries == other.ColourPrimaries &&
		f.TransferCharacteristics == other.TransferCharacteristics &&
		f.MatrixCoefficients == other.MatrixCoefficients &&
		f.OctetRate == other.OctetRate &&
		f.BufferSize == other.BufferSize &&
		f.MaxOctetRate == other.MaxOctetRate &&
		f.MaxBufferSize == other.MaxBufferSize &&
		f.LowDelay == other.LowDelay &&
		f.Progressive == other.Progressive &&
		f.Latency == other.Latency &&
		bytes.Equal(f.GlobalHeaders, other.GlobalHeaders)
}

func (f *VideoFormat) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"%s %dx%d %s profile:%d level:%d fps:%s sar:%s encaps:%s",
		f.Def, f.Width, f.Height, f.PixelFormat, f.Profile, f.Level, f.FPS, f.SAR, f.Encapsulation,
	)
}
