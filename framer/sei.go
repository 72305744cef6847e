package framer

import (
	"github.com/xaionaro-go/h26xframer/bitstream"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/zsiec/ccx"
)

const (
	seiBufferingPeriod = 0
	seiPicTiming       = 1
)

// forEachSEIMessage walks sei_message() entries of an SEI RBSP (given
// without the NAL unit header).
func forEachSEIMessage(payload []byte, fn func(payloadType int, payload []byte) error) error {
	data := bitstream.Unescape(payload)
	for len(data) > 0 {
		if len(data) == 1 && data[0] == 0x80 {
			// rbsp_trailing_bits
			return nil
		}

		payloadType, n := readSEIValue(data)
		if n < 0 {
			return invalidf("truncated SEI payload type")
		}
		data = data[n:]

		payloadSize, n := readSEIValue(data)
		if n < 0 {
			return invalidf("truncated SEI payload size")
		}
		data = data[n:]

		if payloadSize > len(data) {
			return invalidf("SEI payload of %d bytes exceeds the NAL unit (%d bytes left)", payloadSize, len(data))
		}
		if err := fn(payloadType, data[:payloadSize]); err != nil {
			return err
		}
		data = data[payloadSize:]
	}
	return nil
}

// readSEIValue reads a value coded as a run of 0xFF bytes plus a final byte.
func readSEIValue(data []byte) (int, int) {
	value := 0
	for i, b := range data {
		value += int(b)
		if b != 0xFF {
			return value, i + 1
		}
	}
	return 0, -1
}

// extractCaptions returns the CEA-608 and CEA-708 byte pairs carried in
// the user data of an SEI NAL unit.
func extractCaptions(nal []byte) []types.CaptionPair {
	cd := ccx.ExtractCaptions(nal)
	if cd == nil {
		return nil
	}
	result := make([]types.CaptionPair, 0, len(cd.CC608Pairs)+len(cd.DTVCC))
	for _, pair := range cd.CC608Pairs {
		result = append(result, types.CaptionPair{
			Channel: int(pair.Channel),
			Field:   int(pair.Field),
			Data:    [2]byte{pair.Data[0], pair.Data[1]},
		})
	}
	for _, pair := range cd.DTVCC {
		result = append(result, types.CaptionPair{
			DTVCC: true,
			Start: pair.Start,
			Data:  [2]byte{pair.Data[0], pair.Data[1]},
		})
	}
	return result
}
