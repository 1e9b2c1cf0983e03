package audit_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/audit"
)

func TestSecurityLogKeepsNewestEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := audit.NewSecurityLog(client, 3)
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		require.NoError(t, log.Log(ctx, audit.SecurityEvent{EventType: audit.EventLoginFailed, IP: ip}))
	}

	events, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "10.0.0.4", events[0].IP)
	assert.Equal(t, "10.0.0.2", events[2].IP)
	assert.False(t, events[0].Timestamp.IsZero())

	events, err = log.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
