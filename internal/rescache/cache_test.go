package rescache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAndPrefixed(t *testing.T) {
	a := Fingerprint(1, "сходил в зал")
	b := Fingerprint(1, "сходил в зал")
	c := Fingerprint(2, "сходил в зал")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, keyPrefix)
}

func TestMemoryStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok := store.Get(ctx, "missing")
	assert.False(t, ok)

	store.Set(ctx, "key", "value", time.Minute)
	v, ok := store.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	store.Delete(ctx, "key")
	_, ok = store.Get(ctx, "key")
	assert.False(t, ok)
}

func TestNewRedisStoreFallsBackOnInvalidURL(t *testing.T) {
	store := NewRedisStore("not-a-valid-url", zerolog.Nop())
	ctx := context.Background()
	store.Set(ctx, "k", "v", time.Second)
	v, ok := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
