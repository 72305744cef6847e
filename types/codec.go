package types

import (
	"fmt"
	"strings"
)

type CodecID int

const (
	CodecIDUndefined = CodecID(iota)
	CodecIDH264
	CodecIDH265
)

func (c CodecID) String() string {
	switch c {
	case CodecIDUndefined:
		return "<undefined>"
	case CodecIDH264:
		return "h264"
	case CodecIDH265:
		return "h265"
	default:
		return fmt.Sprintf("<unknown_codec_%d>", int(c))
	}
}

// NALHeaderSize returns the size of the NAL unit header in bytes.
func (c CodecID) NALHeaderSize() int {
	switch c {
	case CodecIDH264:
		return 1
	case CodecIDH265:
		return 2
	default:
		return 0
	}
}

// Set implements pflag.Value.
func (c *CodecID) Set(s string) error {
	switch strings.ToLower(s) {
	case "h264", "avc", "h.264":
		*c = CodecIDH264
	case "h265", "hevc", "h.265":
		*c = CodecIDH265
	default:
		return fmt.Errorf("unknown codec %q", s)
	}
	return nil
}

// Type implements pflag.Value.
func (c *CodecID) Type() string {
	return "codec"
}
