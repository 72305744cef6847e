package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	for _, tc := range []struct {
		size     int
		expected int
		ok       bool
	}{
		{0, 0, true},
		{64, 0, true},
		{65, 1, true},
		{128, 1, true},
		{1 << 24, maxSizeClassLog2 - minSizeClassLog2, true},
		{1<<24 + 1, 0, false},
	} {
		idx, ok := sizeClass(tc.size)
		require.Equal(t, tc.ok, ok, "size %d", tc.size)
		require.Equal(t, tc.expected, idx, "size %d", tc.size)
	}
}

func TestBuffers(t *testing.T) {
	ctx := context.Background()
	b := NewBuffers()

	buf, err := b.Allocate(ctx, 100)
	require.NoError(t, err)
	require.Len(t, buf, 100)
	require.Equal(t, 128, cap(buf))
	b.Release(buf)

	big, err := b.Allocate(ctx, 1<<24+1)
	require.NoError(t, err)
	require.Len(t, big, 1<<24+1)
	b.Release(big)

	b.Release(make([]byte, 10, 100))
	b.Release(nil)
}

func TestPool(t *testing.T) {
	resets := 0
	p := NewPool(
		func() *int { return new(int) },
		func(v *int) { resets++; *v = 0 },
	)
	v := p.Get()
	*v = 5
	p.Put(v)
	require.Equal(t, 1, resets)
	require.Equal(t, 0, *v)
}
