package middleware

import (
	"sync"
	"time"
)

type clientInfo struct {
	start time.Time
	count int64
}

// localLimiter keeps fixed windows in process memory.
type localLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	now     func() time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{clients: make(map[string]*clientInfo), now: time.Now}
}

func (l *localLimiter) incr(key string, window time.Duration) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.start) > window {
		if len(l.clients) > 10000 {
			l.evict(now, window)
		}
		l.clients[key] = &clientInfo{start: now, count: 1}
		return 1
	}
	ci.count++
	return ci.count
}

func (l *localLimiter) evict(now time.Time, window time.Duration) {
	for k, ci := range l.clients {
		if now.Sub(ci.start) > window {
			delete(l.clients, k)
		}
	}
}
