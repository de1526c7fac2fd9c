package noop_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/cache/noop"
	"gstrecon/internal/domain"
)

func TestRunCache(t *testing.T) {
	ctx := context.Background()
	c := noop.NewRunCache()

	require.NoError(t, c.Set(ctx, "fp", uuid.New()))
	_, ok, err := c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)

	unlock, err := c.Lock(ctx, "fp")
	require.NoError(t, err)

	_, err = c.Lock(ctx, "fp")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	_, err = c.Lock(ctx, "other")
	assert.NoError(t, err)

	require.NoError(t, unlock(ctx))
	_, err = c.Lock(ctx, "fp")
	assert.NoError(t, err)
}
