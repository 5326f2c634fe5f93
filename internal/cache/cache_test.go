package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

type payload struct {
	Names []string `json:"names"`
	Total int      `json:"total"`
}

func TestRemember_ReadThrough(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour, nil, zap.NewNop())
	calls := 0
	fetch := func(context.Context) (payload, error) {
		calls++
		return payload{Names: []string{"erp"}, Total: 1}, nil
	}

	first, err := Remember(t.Context(), c, "resources", fetch)
	require.NoError(t, err)
	second, err := Remember(t.Context(), c, "resources", fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRemember_ErrorsAreNotCached(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour, nil, zap.NewNop())
	boom := errors.New("api down")
	calls := 0

	_, err := Remember(t.Context(), c, "k", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := Remember(t.Context(), c, "k", func(context.Context) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("conn refused")
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("conn refused")
}
func (brokenStore) Flush(context.Context) error { return nil }

func TestRemember_StoreFailureFallsThrough(t *testing.T) {
	c := New(brokenStore{}, time.Hour, nil, zap.NewNop())

	v, err := Remember(t.Context(), c, "k", func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(t.Context(), "a", []byte("1"), time.Hour))

	_, ok, _ := s.Get(t.Context(), "a")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok, _ = s.Get(t.Context(), "a")
	assert.False(t, ok)
}

func TestMemoryStore_FlushOnlyCacheNamespace(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(t.Context(), infra.CacheKey("identities"), []byte("[]"), 0))
	require.NoError(t, s.Set(t.Context(), "other", []byte("x"), 0))

	require.NoError(t, s.Flush(t.Context()))

	_, ok, _ := s.Get(t.Context(), infra.CacheKey("identities"))
	assert.False(t, ok)
	_, ok, _ = s.Get(t.Context(), "other")
	assert.True(t, ok)
}
