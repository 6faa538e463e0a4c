package kv

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

func TestMemoryGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryUpdateIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
				n, _ := strconv.Atoi(string(cur))
				return []byte(strconv.Itoa(n + 1)), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "50", string(v))
}

func TestMemoryTTL(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryAcquireExclusive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	release, ok, err := s.Acquire(ctx, "submit:e1:s1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.Acquire(ctx, "submit:e1:s1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	_, ok, _ = s.Acquire(ctx, "submit:e1:s1", time.Minute)
	assert.True(t, ok)
}
