package provider

import (
	"sync"
	"time"

	"scribe/internal/logging"
)

// Cooldown enforces a minimum interval between consecutive calls to the
// same provider. Concurrent callers targeting one provider are
// effectively serialized; distinct providers never block each other.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	sleep    func(time.Duration) // swapped out in tests
}

// NewCooldown creates a cooldown gate with the given minimum interval.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		last:     make(map[string]time.Time),
		sleep:    time.Sleep,
	}
}

// Wait blocks until the provider's cooldown has elapsed, then claims the
// slot. The claim happens under the lock so two concurrent callers can
// never both see an expired cooldown.
func (c *Cooldown) Wait(providerName string) {
	for {
		c.mu.Lock()
		now := time.Now()
		last, ok := c.last[providerName]
		if !ok || now.Sub(last) >= c.interval {
			c.last[providerName] = now
			c.mu.Unlock()
			return
		}
		wait := c.interval - now.Sub(last)
		c.mu.Unlock()

		logging.ProviderDebug("cooldown: waiting %v before next call to %s", wait, providerName)
		c.sleep(wait)
	}
}
