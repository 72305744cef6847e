package framer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/h26xframer/bitstream"
)

func testH265ShortTermRPS(numNegative, numPositive uint32) *bitstream.Reader {
	w := bitstream.NewWriter()
	w.WriteUE(numNegative)
	w.WriteUE(numPositive)
	for i := uint32(0); i < numNegative+numPositive; i++ {
		w.WriteUE(0)      // delta_poc_sX_minus1
		w.WriteFlag(true) // used_by_curr_pic_sX_flag
	}
	w.WriteTrailingBits()
	return bitstream.NewReader(w.Bytes())
}

func TestH265ParseShortTermRPS(t *testing.T) {
	for _, tc := range []struct {
		name        string
		numNegative uint32
		numPositive uint32
		maxDecMinus uint32
		expectErr   bool
	}{
		{"within-dpb", 2, 1, 3, false},
		{"negative-exceeds-dpb", 3, 0, 2, true},
		{"sum-exceeds-dpb", 2, 1, 2, true},
		{"global-bound", 16, 0, 20, false},
		{"above-global-bound", 17, 0, 20, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			count, err := h265ParseShortTermRPS(
				testH265ShortTermRPS(tc.numNegative, tc.numPositive),
				0, nil, tc.maxDecMinus,
			)
			if tc.expectErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.numNegative+tc.numPositive, count)
		})
	}
}
