package framer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamSetStore(t *testing.T) {
	s := newParamSetStore("PPS", 4)

	_, err := s.store(4, []byte{1})
	require.ErrorIs(t, err, ErrInvalid)
	var errID ErrInvalidParameterSetID
	require.ErrorAs(t, err, &errID)
	require.Equal(t, uint32(4), errID.ID)

	_, err = s.get(1)
	require.ErrorIs(t, err, ErrInvalid)

	raw := []byte{0x68, 0xCE}
	changed, err := s.store(1, raw)
	require.NoError(t, err)
	require.False(t, changed)
	raw[1] = 0
	got, err := s.get(1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x68, 0xCE}, got)

	s.setActive(1)
	require.True(t, s.isActive(1))
	id, ok := s.activeID()
	require.True(t, ok)
	require.Equal(t, uint32(1), id)

	changed, err = s.store(1, []byte{0x68, 0xCE})
	require.NoError(t, err)
	require.False(t, changed)
	require.True(t, s.isActive(1))

	changed, err = s.store(1, []byte{0x68, 0xCF})
	require.NoError(t, err)
	require.True(t, changed)
	require.False(t, s.isActive(1))
	require.Nil(t, s.activeRaw())

	_, err = s.store(0, []byte{0x68, 0x01})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x68, 0x01}, {0x68, 0xCF}}, s.all())

	s.reset()
	require.Empty(t, s.all())
	_, ok = s.activeID()
	require.False(t, ok)
}
