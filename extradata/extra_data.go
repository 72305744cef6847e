// extra_data.go provides types and functions for parsing and handling codec global headers.

// Package extradata provides types and functions for parsing and handling
// H.26x global headers (Annex-B sequences and decoder configuration records).
package extradata

import (
	"bytes"
	"fmt"

	"github.com/xaionaro-go/h26xframer/types"
)

type Raw []byte

func (b Raw) Equal(cmp Raw) bool {
	return bytes.Equal(b, cmp)
}

func (b Raw) String() string {
	if len(b) == 0 {
		return "<empty>"
	}

	return b.Parse(types.CodecIDUndefined).String()
}

// Parsed is the top-level "discriminated union".
type Parsed interface {
	fmt.Stringer
}

// Parse tries the known formats of the codec (or of every codec when
// undefined) and falls back to Unknown.
func (b Raw) Parse(codec types.CodecID) Parsed {
	if len(b) == 0 {
		return nil
	}

	if IsAnnexB(b) {
		switch codec {
		case types.CodecIDH265:
			if seq, err := ParseH265AnnexB(b); err == nil {
				return seq
			}
		default:
			if seq, err := ParseH264AnnexB(b); err == nil {
				return seq
			}
		}
		return Unknown(b)
	}

	if codec != types.CodecIDH265 {
		if avcc, err := ParseH264AVCC(b); err == nil {
			return avcc
		}
	}

	if codec != types.CodecIDH264 {
		if hvcc, err := ParseH265HVCC(b); err == nil {
			return hvcc
		}
	}

	return Unknown(b)
}

// ParameterSets extracts the NAL units carried by global headers in any
// supported form and reports the NAL length size of a configuration
// record (zero for Annex-B).
func ParameterSets(codec types.CodecID, b []byte) ([][]byte, int, error) {
	if IsAnnexB(b) {
		return SplitAnnexB(b), 0, nil
	}
	switch codec {
	case types.CodecIDH264:
		avcc, err := ParseH264AVCC(b)
		if err != nil {
			return nil, 0, fmt.Errorf("unable to parse avcC: %w", err)
		}
		nalus := append(append([][]byte{}, avcc.SPS...), avcc.SPSExt...)
		nalus = append(nalus, avcc.PPS...)
		return nalus, avcc.NalLengthSize, nil
	case types.CodecIDH265:
		hvcc, err := ParseH265HVCC(b)
		if err != nil {
			return nil, 0, fmt.Errorf("unable to parse hvcC: %w", err)
		}
		return hvcc.NALUs(), hvcc.NalLengthSize, nil
	default:
		return nil, 0, fmt.Errorf("unsupported codec %s", codec)
	}
}

type Unknown []byte

func (b Unknown) String() string {
	return fmt.Sprintf("<unknown_type, raw:%X>", []byte(b))
}
