package framer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scanAll(s *Scanner, data []byte, chunkSize int) []int {
	var (
		found []int
		pos   int
	)
	for begin := 0; begin < len(data); begin += chunkSize {
		chunk := data[begin:min(begin+chunkSize, len(data))]
		for len(chunk) > 0 {
			n, ok := s.Scan(chunk)
			pos += n
			chunk = chunk[n:]
			if ok {
				found = append(found, pos-s.StartCodeSize())
			}
		}
	}
	return found
}

func TestScanner(t *testing.T) {
	data := []byte{
		0x42, 0x00, 0x00, 0x01, 0x67, 0x00,
		0x00, 0x00, 0x01, 0x68, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x01, 0x65,
	}
	expected := []int{1, 5, 13}

	for _, chunkSize := range []int{1, 2, 3, 5, len(data)} {
		require.Equal(t, expected, scanAll(NewScanner(), data, chunkSize), "chunk size %d", chunkSize)
	}

	t.Run("unscan", func(t *testing.T) {
		s := NewScanner()
		n, ok := s.Scan([]byte{0x00, 0x00, 0x00, 0x01})
		require.True(t, ok)
		require.Equal(t, 4, n)
		require.Equal(t, 4, s.StartCodeSize())
		s.Unscan()
		n, ok = s.Scan([]byte{0x01, 0x67})
		require.True(t, ok)
		require.Equal(t, 1, n)
		require.Equal(t, 4, s.StartCodeSize())
	})

	t.Run("reset", func(t *testing.T) {
		s := NewScanner()
		_, ok := s.Scan([]byte{0x00, 0x00})
		require.False(t, ok)
		s.Reset()
		_, ok = s.Scan([]byte{0x01})
		require.False(t, ok)
	})
}
