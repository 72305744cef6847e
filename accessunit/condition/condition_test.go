package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/types"
)

func TestContainsFiller(t *testing.T) {
	ctx := context.Background()
	cond := ContainsFiller(true)

	newAU := func(codecID types.CodecID, nalus ...[]byte) *types.AccessUnit {
		return &types.AccessUnit{
			Payload:       extradata.JoinAnnexB(nalus...),
			Encapsulation: types.EncapsulationAnnexB,
			Codec:         codecID,
		}
	}

	t.Run("H264_Filler", func(t *testing.T) {
		require.True(t, cond.Match(ctx, newAU(types.CodecIDH264, []byte{12, 0xFF, 0x80})))
	})

	t.Run("H264_Mixed", func(t *testing.T) {
		au := newAU(types.CodecIDH264, []byte{1, 1, 2, 3}, []byte{12, 0xFF, 0x80})
		require.False(t, cond.Match(ctx, au))
		require.True(t, ContainsFiller(false).Match(ctx, au))
	})

	t.Run("H265_Filler", func(t *testing.T) {
		// FD_NUT: (38 << 1) = 0x4C
		require.True(t, cond.Match(ctx, newAU(types.CodecIDH265, []byte{0x4C, 0x01, 0xFF, 0x80})))
	})

	t.Run("Empty", func(t *testing.T) {
		require.False(t, cond.Match(ctx, &types.AccessUnit{Codec: types.CodecIDH264}))
	})
}

func TestLogic(t *testing.T) {
	ctx := context.Background()
	key := &types.AccessUnit{Key: true}
	broken := &types.AccessUnit{Error: true}

	var and And
	and.Add(IsKey(true)).Add(HasError(false))
	require.True(t, and.Match(ctx, key))
	require.False(t, and.Match(ctx, broken))
	require.Equal(t, "(IsKey(true)&HasError(false))", and.String())

	not := Not{and}
	require.False(t, not.Match(ctx, key))
	require.True(t, not.Match(ctx, broken))

	require.True(t, Static(true).Match(ctx, nil))
	require.Equal(t, "false", Static(false).String())

	fn := Function(func(_ context.Context, au *types.AccessUnit) bool {
		return au.PictureNumber > 1
	})
	require.True(t, fn.Match(ctx, &types.AccessUnit{PictureNumber: 2}))
}
