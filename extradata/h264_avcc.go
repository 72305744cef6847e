// h264_avcc.go provides parsing and building of H.264 AVCDecoderConfigurationRecord.

package extradata

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

type H264AVCC struct {
	Raw           []byte
	Profile       uint8
	Compatibility uint8
	Level         uint8
	NalLengthSize int      // 1..4 bytes
	SPS           [][]byte // raw SPS NALUs (without length prefixes)
	PPS           [][]byte // raw PPS NALUs

	// Present for High profiles only (ISO/IEC 14496-15 5.3.3.1.2).
	HasHighProfileFields bool
	ChromaFormat         uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
	SPSExt               [][]byte

	Trailing []byte // anything left after the last parsed field
}

// IsH264HighProfile reports whether the profile carries chroma format and
// bit depth in the SPS and in the configuration record.
func IsH264HighProfile(profile uint8) bool {
	switch profile {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	}
	return false
}

func readParameterSetList(b []byte, offset int, count int) ([][]byte, int, error) {
	var list [][]byte
	for i := 0; i < count; i++ {
		if offset+2 > len(b) {
			return list, offset, fmt.Errorf("truncated parameter set #%d length", i)
		}
		size := int(binary.BigEndian.Uint16(b[offset:]))
		offset += 2
		if offset+size > len(b) {
			return list, offset, fmt.Errorf("truncated parameter set #%d: %d > %d", i, size, len(b)-offset)
		}
		list = append(list, append([]byte(nil), b[offset:offset+size]...))
		offset += size
	}
	return list, offset, nil
}

func ParseH264AVCC(b []byte) (*H264AVCC, error) {
	if len(b) < 7 {
		return nil, fmt.Errorf("data too short (%d bytes)", len(b))
	}
	// configurationVersion must be 1
	if b[0] != 1 {
		return nil, fmt.Errorf("unsupported configurationVersion (%d)", b[0])
	}
	// reserved bits must be all 1s for AVCC
	if b[4]&0xFC != 0xFC {
		return nil, fmt.Errorf("invalid reserved bits in byte 4 (0x%02X)", b[4])
	}

	cfg := &H264AVCC{
		Raw:           append([]byte(nil), b...),
		Profile:       b[1],
		Compatibility: b[2],
		Level:         b[3],
		NalLengthSize: int(b[4]&0x03) + 1,
	}

	var err error
	offset := 6
	cfg.SPS, offset, err = readParameterSetList(b, offset, int(b[5]&0x1F))
	if err != nil {
		return nil, fmt.Errorf("unable to read the SPS list: %w", err)
	}

	if offset >= len(b) {
		return nil, fmt.Errorf("no PPS count")
	}
	numPPS := int(b[offset])
	cfg.PPS, offset, err = readParameterSetList(b, offset+1, numPPS)
	if err != nil {
		return nil, fmt.Errorf("unable to read the PPS list: %w", err)
	}

	if IsH264HighProfile(cfg.Profile) && offset+4 <= len(b) {
		cfg.HasHighProfileFields = true
		cfg.ChromaFormat = b[offset] & 0x03
		cfg.BitDepthLumaMinus8 = b[offset+1] & 0x07
		cfg.BitDepthChromaMinus8 = b[offset+2] & 0x07
		cfg.SPSExt, offset, err = readParameterSetList(b, offset+4, int(b[offset+3]))
		if err != nil {
			return nil, fmt.Errorf("unable to read the SPS extension list: %w", err)
		}
	}

	if offset < len(b) {
		cfg.Trailing = append([]byte(nil), b[offset:]...)
	}

	return cfg, nil
}

func appendParameterSetList(out []byte, list [][]byte) []byte {
	for _, ps := range list {
		out = binary.BigEndian.AppendUint16(out, uint16(len(ps)))
		out = append(out, ps...)
	}
	return out
}

// Bytes serializes the record. Profile, compatibility and level are
// taken from the first SPS when present.
func (c *H264AVCC) Bytes() []byte {
	profile, compat, level := c.Profile, c.Compatibility, c.Level
	if len(c.SPS) > 0 && len(c.SPS[0]) >= 4 {
		profile, compat, level = c.SPS[0][1], c.SPS[0][2], c.SPS[0][3]
	}
	nalLengthSize := c.NalLengthSize
	if nalLengthSize == 0 {
		nalLengthSize = 4
	}

	out := []byte{1, profile, compat, level, 0xFC | byte(nalLengthSize-1), 0xE0 | byte(len(c.SPS))}
	out = appendParameterSetList(out, c.SPS)
	out = append(out, byte(len(c.PPS)))
	out = appendParameterSetList(out, c.PPS)
	if IsH264HighProfile(profile) {
		out = append(out,
			0xFC|c.ChromaFormat,
			0xF8|c.BitDepthLumaMinus8,
			0xF8|c.BitDepthChromaMinus8,
			byte(len(c.SPSExt)),
		)
		out = appendParameterSetList(out, c.SPSExt)
	}
	return out
}

func (c *H264AVCC) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "H.264 AVCDecoderConfigurationRecord (AVCC)\n")
	fmt.Fprintf(&sb, "  Profile:         0x%02X\n", c.Profile)
	fmt.Fprintf(&sb, "  Compatibility:   0x%02X\n", c.Compatibility)
	fmt.Fprintf(&sb, "  Level:           0x%02X\n", c.Level)
	fmt.Fprintf(&sb, "  NAL length size: %d bytes\n", c.NalLengthSize)

	writeParameterSets(&sb, "SPS", c.SPS)
	writeParameterSets(&sb, "PPS", c.PPS)
	if c.HasHighProfileFields {
		fmt.Fprintf(&sb, "  Chroma format:   %d\n", c.ChromaFormat)
		fmt.Fprintf(&sb, "  Bit depth:       %d/%d\n", c.BitDepthLumaMinus8+8, c.BitDepthChromaMinus8+8)
		writeParameterSets(&sb, "SPSExt", c.SPSExt)
	}

	if len(c.Trailing) > 0 {
		sb.WriteString("  Trailing bytes:\n")
		sb.WriteString(indent(hex.Dump(c.Trailing), "    "))
	}

	return sb.String()
}

func writeParameterSets(sb *strings.Builder, name string, list [][]byte) {
	fmt.Fprintf(sb, "  %s count: %d\n", name, len(list))
	for i, ps := range list {
		preview := min(len(ps), 16)
		fmt.Fprintf(sb, "    %s[%d]: %d bytes, first %d bytes: % X\n",
			name, i, len(ps), preview, ps[:preview])
	}
}
