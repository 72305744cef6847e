// annexb.go provides common functionality for parsing and building Annex-B sequences.

package extradata

// StartCode is the 4-byte Annex-B start code emitted by this package.
var StartCode = []byte{0, 0, 0, 1}

// SplitAnnexB returns copies of the NAL units of an Annex-B sequence,
// without their start codes.
func SplitAnnexB(b []byte) [][]byte {
	var nalus [][]byte
	n := len(b)
	i := 0

	for {
		start := FindStartCode(b, i)
		if start < 0 {
			break
		}

		scLen := StartCodeLen(b, start)
		next := FindStartCode(b, start+scLen)
		end := n
		if next >= 0 {
			end = next
		}

		// trailing_zero_8bits belong to no NAL unit
		for end > start+scLen && b[end-1] == 0 {
			end--
		}

		if start+scLen < end {
			nalus = append(nalus, append([]byte(nil), b[start+scLen:end]...))
		}

		if next < 0 {
			break
		}
		i = next
	}

	return nalus
}

// StartCodeLen returns 4 if the start code at the given offset is
// preceded by an additional zero byte, and 3 otherwise.
func StartCodeLen(b []byte, start int) int {
	if start+3 < len(b) &&
		b[start] == 0 && b[start+1] == 0 &&
		b[start+2] == 0 && b[start+3] == 1 {
		return 4
	}
	return 3
}

func FindStartCode(b []byte, start int) int {
	n := len(b)
	for i := start; i+3 <= n; i++ {
		if b[i] == 0 && b[i+1] == 0 {
			// 00 00 01
			if b[i+2] == 1 {
				return i
			}
			// 00 00 00 01
			if i+4 <= n && b[i+2] == 0 && b[i+3] == 1 {
				return i
			}
		}
	}
	return -1
}

// JoinAnnexB prefixes every NAL unit with a 4-byte start code.
func JoinAnnexB(nalus ...[]byte) []byte {
	var size int
	for _, nalu := range nalus {
		size += len(StartCode) + len(nalu)
	}
	result := make([]byte, 0, size)
	for _, nalu := range nalus {
		result = append(result, StartCode...)
		result = append(result, nalu...)
	}
	return result
}

// IsAnnexB reports whether global headers are an Annex-B sequence
// rather than a decoder configuration record.
func IsAnnexB(b []byte) bool {
	return len(b) >= 3 && b[0] == 0 && b[1] == 0
}
