// Package ratelimit 按客户端限制请求速率
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultIdleTTL 超过该时长未访问的客户端桶会被回收
const defaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter 为每个客户端维护一个令牌桶
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu          sync.Mutex
	clients     map[string]*entry
	lastCleanup time.Time
}

// NewClientLimiter 每个客户端每分钟 perMinute 次，允许 burst 次突发。
// burst <= 0 时取 perMinute 的一半，至少为 1。
func NewClientLimiter(perMinute, burst int) *ClientLimiter {
	if burst <= 0 {
		burst = perMinute / 2
		if burst <= 0 {
			burst = 1
		}
	}
	l := &ClientLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		clients: make(map[string]*entry),
	}
	l.lastCleanup = l.now()
	return l
}

// Allow 消耗 client 的一个令牌，桶为空时返回 false
func (l *ClientLimiter) Allow(client string) bool {
	return l.get(client).AllowN(l.now(), 1)
}

// RetryAfter 返回 client 下一个令牌可用前的等待时间
func (l *ClientLimiter) RetryAfter(client string) time.Duration {
	lim := l.get(client)
	now := l.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// Len 当前跟踪的客户端数量
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientLimiter) get(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > l.idleTTL {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > l.idleTTL {
				delete(l.clients, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.clients[client]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = e
	}
	e.lastSeen = now
	return e.limiter
}
