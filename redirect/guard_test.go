package redirect_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newGuard(t *testing.T) (*redirect.Guard, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	return redirect.NewGuard(redirect.WithNowFunc(clock.Now)), clock
}

func TestGuard_Cooldown(t *testing.T) {
	g, clock := newGuard(t)

	require.True(t, g.MayRedirect(redirect.KeyAuth))
	require.False(t, g.MayRedirect(redirect.KeyAuth))

	clock.Advance(1999 * time.Millisecond)
	require.False(t, g.MayRedirect(redirect.KeyAuth))

	clock.Advance(time.Millisecond)
	require.True(t, g.MayRedirect(redirect.KeyAuth), "exactly the cooldown has elapsed")
}

func TestGuard_SuppressedCallDoesNotExtendWindow(t *testing.T) {
	g, clock := newGuard(t)

	require.True(t, g.MayRedirect(redirect.KeyAuth))
	clock.Advance(time.Second)
	require.False(t, g.MayRedirect(redirect.KeyAuth))
	require.Equal(t, time.Second, g.RetryAfter(redirect.KeyAuth))

	clock.Advance(time.Second)
	require.True(t, g.MayRedirect(redirect.KeyAuth))
}

func TestGuard_KeysAreIndependent(t *testing.T) {
	g, _ := newGuard(t)

	require.True(t, g.MayRedirect(redirect.KeyAuth))
	require.True(t, g.MayRedirect(redirect.KeyLogin))
	require.False(t, g.MayRedirect(redirect.KeyLogin))
}

func TestGuard_Reset(t *testing.T) {
	g, _ := newGuard(t)

	require.True(t, g.MayRedirect(redirect.KeyAuth))
	g.Reset(redirect.KeyAuth, redirect.KeyLogin)
	require.True(t, g.MayRedirect(redirect.KeyAuth))

	require.Zero(t, g.RetryAfter(redirect.KeyLogin))
}

func TestGuard_ConcurrentCallersSeeOneTrue(t *testing.T) {
	g, _ := newGuard(t)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.MayRedirect(redirect.KeyAuth) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), allowed.Load())
}

func TestGuard_RetryAfter(t *testing.T) {
	g, clock := newGuard(t)
	require.Zero(t, g.RetryAfter(redirect.KeyAuth))

	require.True(t, g.MayRedirect(redirect.KeyAuth))
	require.Equal(t, redirect.DefaultCooldown, g.RetryAfter(redirect.KeyAuth))

	clock.Advance(redirect.DefaultCooldown)
	require.Zero(t, g.RetryAfter(redirect.KeyAuth))
}

func TestGuard_WithCooldown(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	g := redirect.NewGuard(redirect.WithCooldown(5*time.Second), redirect.WithNowFunc(func() time.Time { return now }))

	require.True(t, g.MayRedirect(redirect.KeyAuth))
	require.Equal(t, 5*time.Second, g.RetryAfter(redirect.KeyAuth))
}
