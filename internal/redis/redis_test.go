package redisx_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisx "accountforge/internal/redis"
)

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := redisx.New(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := redisx.New(context.Background(), "http://nope")
	assert.Error(t, err)
}
