package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRationalFromString(t *testing.T) {
	tests := []struct {
		input          string
		expectedNum    int
		expectedDen    int
		expectingError bool
	}{
		{"30", 30, 1, false},
		{"30/1", 30, 1, false},
		{"30000/1001", 30000, 1001, false}, // NTSC
		{"~23.976", 24000, 1001, false},    // NTSC
		{"~29.97", 30000, 1001, false},     // NTSC
		{"~25", 25, 1, false},
		{"0.5", 1, 2, false},
		{"0.33333", 33333, 100000, false},
		{"0/1", 0, 1, false},
		{"1/0", 0, 0, true},
		{"invalid", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			rational, err := RationalFromString(test.input)
			if test.expectingError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, Rational{Num: test.expectedNum, Den: test.expectedDen}, *rational)
		})
	}
}

func TestRationalReduce(t *testing.T) {
	require.Equal(t, Rational{Num: 25, Den: 1}, Rational{Num: 50, Den: 2}.Reduce())
	require.Equal(t, Rational{Num: 30000, Den: 1001}, Rational{Num: 60000, Den: 2002}.Reduce())
	require.True(t, Rational{}.IsZero())
	require.Equal(t, Rational{}, Rational{}.Reduce())
}

func TestRationalSet(t *testing.T) {
	var r Rational
	require.NoError(t, r.Set("50/2"))
	require.Equal(t, Rational{Num: 50, Den: 2}, r)
	require.Error(t, r.Set("x"))
}

func TestRationalPeriod(t *testing.T) {
	require.Equal(t, uint64(ClockFreq/25), Rational{Num: 25, Den: 1}.Period(ClockFreq))
	require.Equal(t, uint64(900900), Rational{Num: 30000, Den: 1001}.Period(ClockFreq))
	require.Zero(t, Rational{}.Period(ClockFreq))
}
