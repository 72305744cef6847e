package closuresignaler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClosureSignaler(t *testing.T) {
	ctx := context.Background()

	t.Run("default-cause", func(t *testing.T) {
		s := New()
		require.False(t, s.IsClosed())
		require.NoError(t, s.Cause())
		s.Close(ctx)
		require.True(t, s.IsClosed())
		require.ErrorIs(t, s.Cause(), ErrClosed)
		<-s.CloseChan()
	})

	t.Run("first-cause-wins", func(t *testing.T) {
		s := New()
		errFirst := errors.New("first")
		s.CloseWithCause(ctx, errFirst)
		s.CloseWithCause(ctx, errors.New("second"))
		s.Close(ctx)
		require.Equal(t, errFirst, s.Cause())
	})
}
