// Package packet provides functions for walking the NAL units of a coded buffer.
package packet

import (
	"fmt"
	"iter"

	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/types"
)

// NALU represents a format-agnostic NAL unit.
type NALU struct {
	Raw  []byte
	Type uint64

	// Offset is the position of the NAL unit delimiter in the iterated data.
	Offset int
}

// NALType returns the NAL unit type of the first header byte.
func NALType(codecID types.CodecID, header byte) uint64 {
	switch codecID {
	case types.CodecIDH264:
		return uint64(extradata.H264NALType(header))
	case types.CodecIDH265:
		return uint64(extradata.H265NALType(header))
	default:
		return 0
	}
}

// Iter returns an iterator over NAL units of data in the given encapsulation.
// The yielded Raw slices alias data.
func Iter(codecID types.CodecID, encaps types.Encapsulation, data []byte) iter.Seq2[NALU, error] {
	return func(yield func(NALU, error) bool) {
		headerSize := codecID.NALHeaderSize()
		if headerSize == 0 {
			yield(NALU{}, fmt.Errorf("unsupported codec ID: %v", codecID))
			return
		}
		emit := func(raw []byte, offset int) bool {
			if len(raw) < headerSize {
				return yield(NALU{}, fmt.Errorf("NAL unit of %d bytes at offset %d is shorter than its header", len(raw), offset))
			}
			return yield(NALU{Raw: raw, Type: NALType(codecID, raw[0]), Offset: offset}, nil)
		}

		if lengthSize := encaps.LengthSize(); lengthSize != 0 {
			for offset := 0; offset < len(data); {
				if offset+lengthSize > len(data) {
					yield(NALU{}, fmt.Errorf("truncated NAL length at offset %d", offset))
					return
				}
				size := 0
				for _, b := range data[offset : offset+lengthSize] {
					size = size<<8 | int(b)
				}
				begin := offset + lengthSize
				if begin+size > len(data) {
					yield(NALU{}, fmt.Errorf("NALU larger than buffer: %d > %d", size, len(data)-begin))
					return
				}
				if !emit(data[begin:begin+size], offset) {
					return
				}
				offset = begin + size
			}
			return
		}

		start := extradata.FindStartCode(data, 0)
		for start >= 0 {
			begin := start + extradata.StartCodeLen(data, start)
			next := extradata.FindStartCode(data, begin)
			end := len(data)
			if next >= 0 {
				end = next
			}
			for end > begin && data[end-1] == 0 {
				end--
			}
			if end > begin && !emit(data[begin:end], start) {
				return
			}
			start = next
		}
	}
}

// IsFiller returns true if the NALU is a filler NAL unit for the given codec.
func IsFiller(codecID types.CodecID, naluType uint64) bool {
	switch codecID {
	case types.CodecIDH264:
		return naluType == uint64(extradata.H264NalUnitTypeFiller)
	case types.CodecIDH265:
		return naluType == uint64(extradata.H265NalUnitTypeFD)
	default:
		return false
	}
}

// IsVCL returns true if the NALU carries coded slice data.
func IsVCL(codecID types.CodecID, naluType uint64) bool {
	switch codecID {
	case types.CodecIDH264:
		return extradata.H264NalUnitType(naluType).IsSlice()
	case types.CodecIDH265:
		return extradata.H265NalUnitType(naluType).IsVCL()
	default:
		return false
	}
}

// JoinNALUs joins NAL units using the given encapsulation; Annex-B uses
// 4-byte start codes.
func JoinNALUs(encaps types.Encapsulation, nalus []NALU) ([]byte, error) {
	lengthSize := encaps.LengthSize()
	prefixSize := lengthSize
	if lengthSize == 0 {
		prefixSize = len(extradata.StartCode)
	}
	var size int
	for _, nalu := range nalus {
		size += prefixSize + len(nalu.Raw)
	}
	result := make([]byte, 0, size)
	for _, nalu := range nalus {
		var err error
		result, err = AppendNALU(result, encaps, nalu.Raw)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AppendNALU appends one NAL unit with its delimiter.
func AppendNALU(dst []byte, encaps types.Encapsulation, raw []byte) ([]byte, error) {
	lengthSize := encaps.LengthSize()
	if lengthSize == 0 {
		dst = append(dst, extradata.StartCode...)
		return append(dst, raw...), nil
	}
	if max := encaps.MaxNALSize(); len(raw) > max {
		return nil, ErrNALTooLarge{Size: len(raw), Max: max}
	}
	for i := lengthSize - 1; i >= 0; i-- {
		dst = append(dst, byte(len(raw)>>(8*i)))
	}
	return append(dst, raw...), nil
}

// ErrNALTooLarge is returned when a NAL unit does not fit into
// the length prefix.
type ErrNALTooLarge struct {
	Size int
	Max  int
}

func (e ErrNALTooLarge) Error() string {
	return fmt.Sprintf("NAL unit of %d bytes does not fit into a length prefix (max %d)", e.Size, e.Max)
}
