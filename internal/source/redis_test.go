// SPDX-License-Identifier: MPL-2.0

package source_test

import (
	"context"
	"testing"
	"time"

	"github.com/cmdtree/cmdtree/internal/source"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *source.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src, err := source.NewRedis(client, source.WithKey("test:docs"), source.WithChannel("test:reload"))
	require.NoError(t, err)
	return mr, src
}

func TestRedis_LoadReadsHash(t *testing.T) {
	t.Parallel()
	mr, src := newRedis(t)

	mr.HSet("test:docs", "b.cue", `commands: b: {}`)
	mr.HSet("test:docs", "a.json", `{"commands": {"a": {}}}`)

	inputs, err := src.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "a.json", inputs[0].ID)
	assert.Equal(t, "b.cue", inputs[1].ID)
	assert.Equal(t, `commands: b: {}`, string(inputs[1].Data))
	assert.Equal(t, "redis:test:docs", src.Name())
}

func TestRedis_EmptyHash(t *testing.T) {
	t.Parallel()
	_, src := newRedis(t)

	inputs, err := src.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestRedis_PutDeleteAnnounce(t *testing.T) {
	t.Parallel()
	mr, src := newRedis(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	changes, err := src.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, src.Put(ctx, "x.cue", []byte(`commands: x: {}`)))
	select {
	case id := <-changes:
		assert.Equal(t, "x.cue", id)
	case <-ctx.Done():
		t.Fatal("no announcement after Put")
	}
	assert.Equal(t, `commands: x: {}`, mr.HGet("test:docs", "x.cue"))

	require.NoError(t, src.Delete(ctx, "x.cue"))
	select {
	case id := <-changes:
		assert.Equal(t, "x.cue", id)
	case <-ctx.Done():
		t.Fatal("no announcement after Delete")
	}
	assert.False(t, mr.Exists("test:docs"))

	cancel()
	for range changes {
	}
}

func TestRedis_LoadFailsWhenServerGone(t *testing.T) {
	t.Parallel()
	mr, src := newRedis(t)
	mr.Close()

	_, err := src.Load(t.Context())
	assert.Error(t, err)
}

func TestNewRedis_NilClient(t *testing.T) {
	t.Parallel()
	_, err := source.NewRedis(nil)
	assert.ErrorIs(t, err, source.ErrNoRedisClient)
}
