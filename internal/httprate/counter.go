package httprate

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type counter struct {
	counters     map[uint64]*count
	windowLength time.Duration
	requestLimit int
	now          func() time.Time
	mu           sync.Mutex
}

type count struct {
	value   int
	resetAt time.Time
}

// Try consumes one request of key and reports whether it was allowed, the
// remaining requests and when the window of key resets.
func (c *counter) Try(key string) (bool, int, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hkey := xxhash.Sum64String(key)
	now := c.now()

	v, ok := c.counters[hkey]
	if !ok || now.After(v.resetAt) {
		v = &count{
			value:   c.requestLimit,
			resetAt: now.Add(c.windowLength),
		}
		c.counters[hkey] = v
	}

	if v.value == 0 {
		return false, 0, v.resetAt
	}
	v.value--
	return true, v.value, v.resetAt
}

func (c *counter) cleanup(done <-chan struct{}) {
	ticker := time.NewTicker(max(c.windowLength, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.doCleanup()
		}
	}
}

func (c *counter) doCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.counters {
		if now.After(v.resetAt) {
			delete(c.counters, k)
		}
	}
}
