package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallel(t *testing.T) {
	t.Run("returns both results", func(t *testing.T) {
		a, b, err := parallel(context.Background(),
			func(context.Context) (int, error) { return 1, nil },
			func(context.Context) (string, error) { return "two", nil },
		)

		require.NoError(t, err)
		assert.Equal(t, 1, a)
		assert.Equal(t, "two", b)
	})

	t.Run("first error cancels the other", func(t *testing.T) {
		boom := errors.New("boom")

		a, b, err := parallel(context.Background(),
			func(context.Context) (int, error) { return 0, boom },
			func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "late", ctx.Err()
			},
		)

		require.ErrorIs(t, err, boom)
		assert.Zero(t, a)
		assert.Empty(t, b)
	})
}
