package framer

import (
	"context"
	"testing"

	"github.com/facebookincubator/go-belt"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
)

func TestEncapsConverter(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	sps, pps, idr := testH264SPS(0, false), testH264PPS(0, 0), testH264IDR(0)
	var state sharedState
	state.AU.Reset()
	codec := newH264(&state)
	for _, nal := range [][]byte{sps, pps, idr} {
		require.NoError(t, codec.HandleNAL(ctx, nal))
	}
	require.Equal(t, [][]byte{sps, pps}, codec.ActiveParameterSets())

	c := &encapsConverter{
		codec:                codec,
		PrependParameterSets: true,
		InsertAUD:            true,
	}
	aud := []byte{0x09, 0xF0}
	filler := []byte{0x0C, 0xFF, 0x80}

	t.Run("annexb-to-length2", func(t *testing.T) {
		p := testH264P(1)
		au := &types.AccessUnit{Payload: extradata.JoinAnnexB(filler, p)}
		require.NoError(t, c.Convert(ctx, au, types.EncapsulationAnnexB, types.EncapsulationLength2))
		expected := []byte{0, byte(len(filler))}
		expected = append(expected, filler...)
		expected = append(expected, 0, byte(len(p)))
		expected = append(expected, p...)
		require.Equal(t, expected, au.Payload)
		require.Equal(t, types.EncapsulationLength2, au.Encapsulation)
		require.Equal(t, 2+len(filler), au.HeaderSize)
		require.Equal(t, 2, au.NALCount)
	})

	t.Run("key-after-aud", func(t *testing.T) {
		au := &types.AccessUnit{Payload: extradata.JoinAnnexB(aud, idr), Key: true}
		require.NoError(t, c.Convert(ctx, au, types.EncapsulationAnnexB, types.EncapsulationAnnexB))
		require.Equal(t, extradata.JoinAnnexB(aud, sps, pps, idr), au.Payload)
		require.Equal(t, 3*4+len(aud)+len(sps)+len(pps), au.HeaderSize)
		require.Equal(t, 4, au.NALCount)
	})

	t.Run("unchanged", func(t *testing.T) {
		payload := extradata.JoinAnnexB(aud, sps, pps, idr)
		au := &types.AccessUnit{Payload: payload, Key: true, HeaderSize: 42}
		require.NoError(t, c.Convert(ctx, au, types.EncapsulationAnnexB, types.EncapsulationAnnexB))
		require.Equal(t, payload, au.Payload)
		require.Equal(t, 42, au.HeaderSize)
	})

	t.Run("too-large", func(t *testing.T) {
		big := append([]byte{0x41}, make([]byte, 300)...)
		big[len(big)-1] = 0x80
		au := &types.AccessUnit{Payload: extradata.JoinAnnexB(big)}
		err := c.Convert(ctx, au, types.EncapsulationAnnexB, types.EncapsulationLength1)
		require.ErrorIs(t, err, ErrInvalid)
	})
}
