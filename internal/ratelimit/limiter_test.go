package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute, burst int) (*ClientLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewClientLimiter(perMinute, burst)
	l.now = clock.now
	l.lastCleanup = clock.t
	return l, clock
}

func TestClientLimiterBurstThenRefill(t *testing.T) {
	l, clock := newTestLimiter(60, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// one token per second at 60/min
	assert.InDelta(t, time.Second.Seconds(), l.RetryAfter("10.0.0.1").Seconds(), 0.01)
	clock.advance(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestClientLimiterIsolatesClients(t *testing.T) {
	l, _ := newTestLimiter(60, 1)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Len())
}

func TestClientLimiterDefaultBurst(t *testing.T) {
	assert.Equal(t, 15, NewClientLimiter(30, 0).burst)
	assert.Equal(t, 1, NewClientLimiter(1, 0).burst)
}

func TestClientLimiterEvictsIdleClients(t *testing.T) {
	l, clock := newTestLimiter(60, 1)

	l.Allow("a")
	clock.advance(defaultIdleTTL + time.Second)
	l.Allow("b")

	assert.Equal(t, 1, l.Len())
}
