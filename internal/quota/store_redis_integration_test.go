//go:build integration

package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sightline/pkg/testutil/containers"
)

func TestRedisLedgerIntegration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	t.Run("limit boundary", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		ledger := NewRedisLedger(rc.Client)

		for i := range 3 {
			allowed, err := ledger.Allow(ctx, "submission", "src-1", 3)
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}
		allowed, err := ledger.Allow(ctx, "submission", "src-1", 3)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("utc day rollover resets the count", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		ledger := NewRedisLedger(rc.Client)
		now := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
		ledger.now = func() time.Time { return now }

		for range 3 {
			_, err := ledger.Allow(ctx, "submission", "src-1", 3)
			require.NoError(t, err)
		}
		allowed, err := ledger.Allow(ctx, "submission", "src-1", 3)
		require.NoError(t, err)
		require.False(t, allowed)

		now = now.Add(2 * time.Minute)
		allowed, err = ledger.Allow(ctx, "submission", "src-1", 3)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("concurrent submissions never exceed the limit", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		ledger := NewRedisLedger(rc.Client)

		const workers = 20
		const limit = 5
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := ledger.Allow(ctx, "submission", "src-1", limit)
				if !assert.NoError(t, err) {
					return
				}
				if ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, limit, allowed)
	})
}
