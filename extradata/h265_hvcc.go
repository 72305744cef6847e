// h265_hvcc.go provides parsing and building of H.265 HEVCDecoderConfigurationRecord.

package extradata

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const h265HVCCHeaderSize = 23

type H265HVCCArray struct {
	Complete bool
	Type     H265NalUnitType
	NALUs    [][]byte
}

type H265HVCC struct {
	Raw []byte

	ProfileSpace         uint8
	Tier                 uint8
	ProfileIDC           uint8
	ProfileCompatibility uint32
	ConstraintIndicator  uint64 // 48 bits
	Level                uint8

	MinSpatialSegmentation uint16
	ParallelismType        uint8
	ChromaFormat           uint8
	BitDepthLumaMinus8     uint8
	BitDepthChromaMinus8   uint8
	AvgFrameRate           uint16
	ConstantFrameRate      uint8
	NumTemporalLayers      uint8
	TemporalIDNested       bool
	NalLengthSize          int

	Arrays []H265HVCCArray
}

func ParseH265HVCC(b []byte) (*H265HVCC, error) {
	if len(b) < h265HVCCHeaderSize {
		return nil, fmt.Errorf("data too short (%d bytes)", len(b))
	}
	if b[0] != 1 {
		return nil, fmt.Errorf("unsupported configurationVersion (%d)", b[0])
	}

	cfg := &H265HVCC{
		Raw:                    append([]byte(nil), b...),
		ProfileSpace:           b[1] >> 6,
		Tier:                   (b[1] >> 5) & 0x01,
		ProfileIDC:             b[1] & 0x1F,
		ProfileCompatibility:   binary.BigEndian.Uint32(b[2:]),
		ConstraintIndicator:    uint64(binary.BigEndian.Uint16(b[6:]))<<32 | uint64(binary.BigEndian.Uint32(b[8:])),
		Level:                  b[12],
		MinSpatialSegmentation: binary.BigEndian.Uint16(b[13:]) & 0x0FFF,
		ParallelismType:        b[15] & 0x03,
		ChromaFormat:           b[16] & 0x03,
		BitDepthLumaMinus8:     b[17] & 0x07,
		BitDepthChromaMinus8:   b[18] & 0x07,
		AvgFrameRate:           binary.BigEndian.Uint16(b[19:]),
		ConstantFrameRate:      b[21] >> 6,
		NumTemporalLayers:      (b[21] >> 3) & 0x07,
		TemporalIDNested:       b[21]&0x04 != 0,
		NalLengthSize:          int(b[21]&0x03) + 1,
	}

	numArrays := int(b[22])
	offset := h265HVCCHeaderSize
	for i := 0; i < numArrays; i++ {
		if offset+3 > len(b) {
			return nil, fmt.Errorf("truncated array #%d header", i)
		}
		arr := H265HVCCArray{
			Complete: b[offset]&0x80 != 0,
			Type:     H265NalUnitType(b[offset] & 0x3F),
		}
		numNALUs := int(binary.BigEndian.Uint16(b[offset+1:]))
		var err error
		arr.NALUs, offset, err = readParameterSetList(b, offset+3, numNALUs)
		if err != nil {
			return nil, fmt.Errorf("unable to read array #%d (%s): %w", i, arr.Type, err)
		}
		cfg.Arrays = append(cfg.Arrays, arr)
	}

	return cfg, nil
}

// NALUs returns every NAL unit of the record in array order.
func (c *H265HVCC) NALUs() [][]byte {
	var result [][]byte
	for _, arr := range c.Arrays {
		result = append(result, arr.NALUs...)
	}
	return result
}

func (c *H265HVCC) Bytes() []byte {
	nalLengthSize := c.NalLengthSize
	if nalLengthSize == 0 {
		nalLengthSize = 4
	}

	out := make([]byte, h265HVCCHeaderSize)
	out[0] = 1
	out[1] = c.ProfileSpace<<6 | (c.Tier&0x01)<<5 | c.ProfileIDC&0x1F
	binary.BigEndian.PutUint32(out[2:], c.ProfileCompatibility)
	binary.BigEndian.PutUint16(out[6:], uint16(c.ConstraintIndicator>>32))
	binary.BigEndian.PutUint32(out[8:], uint32(c.ConstraintIndicator))
	out[12] = c.Level
	binary.BigEndian.PutUint16(out[13:], 0xF000|c.MinSpatialSegmentation&0x0FFF)
	out[15] = 0xFC | c.ParallelismType
	out[16] = 0xFC | c.ChromaFormat
	out[17] = 0xF8 | c.BitDepthLumaMinus8
	out[18] = 0xF8 | c.BitDepthChromaMinus8
	binary.BigEndian.PutUint16(out[19:], c.AvgFrameRate)
	out[21] = (c.ConstantFrameRate&0x03)<<6 | (c.NumTemporalLayers&0x07)<<3 | byte(nalLengthSize-1)
	if c.TemporalIDNested {
		out[21] |= 0x04
	}
	out[22] = byte(len(c.Arrays))

	for _, arr := range c.Arrays {
		hdr := byte(arr.Type) & 0x3F
		if arr.Complete {
			hdr |= 0x80
		}
		out = append(out, hdr)
		out = binary.BigEndian.AppendUint16(out, uint16(len(arr.NALUs)))
		out = appendParameterSetList(out, arr.NALUs)
	}
	return out
}

func (c *H265HVCC) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "H.265 HEVCDecoderConfigurationRecord (HVCC)\n")
	fmt.Fprintf(&sb, "  Profile:         %d (space %d, tier %d)\n", c.ProfileIDC, c.ProfileSpace, c.Tier)
	fmt.Fprintf(&sb, "  Compatibility:   0x%08X\n", c.ProfileCompatibility)
	fmt.Fprintf(&sb, "  Constraints:     0x%012X\n", c.ConstraintIndicator)
	fmt.Fprintf(&sb, "  Level:           %d\n", c.Level)
	fmt.Fprintf(&sb, "  Chroma format:   %d\n", c.ChromaFormat)
	fmt.Fprintf(&sb, "  Bit depth:       %d/%d\n", c.BitDepthLumaMinus8+8, c.BitDepthChromaMinus8+8)
	fmt.Fprintf(&sb, "  NAL length size: %d bytes\n", c.NalLengthSize)
	for _, arr := range c.Arrays {
		writeParameterSets(&sb, arr.Type.String(), arr.NALUs)
	}
	return sb.String()
}
