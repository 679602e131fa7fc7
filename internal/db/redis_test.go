package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientPings(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClientRejectsEmptyAddress(t *testing.T) {
	t.Parallel()

	_, err := NewRedisClient(context.Background(), RedisConfig{})
	assert.Error(t, err)
}
