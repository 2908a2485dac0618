package provider

import (
	"sync"
	"testing"
	"time"
)

func TestCooldownFirstCallPassesImmediately(t *testing.T) {
	c := NewCooldown(10 * time.Second)
	slept := time.Duration(0)
	c.sleep = func(d time.Duration) { slept += d }

	c.Wait("gemini")
	if slept != 0 {
		t.Errorf("first call slept %v, want 0", slept)
	}
}

func TestCooldownEnforcesInterval(t *testing.T) {
	c := NewCooldown(10 * time.Second)
	var slept []time.Duration
	c.sleep = func(d time.Duration) {
		slept = append(slept, d)
		// Simulate time passing by backdating the last-call stamp.
		c.mu.Lock()
		c.last["gemini"] = c.last["gemini"].Add(-d)
		c.mu.Unlock()
	}

	c.Wait("gemini")
	c.Wait("gemini")
	if len(slept) == 0 {
		t.Fatal("second call did not wait for the cooldown")
	}
	if slept[0] <= 0 || slept[0] > 10*time.Second {
		t.Errorf("waited %v, want (0, 10s]", slept[0])
	}
}

func TestCooldownIsPerProvider(t *testing.T) {
	c := NewCooldown(10 * time.Second)
	slept := time.Duration(0)
	c.sleep = func(d time.Duration) { slept += d }

	c.Wait("gemini")
	c.Wait("local")
	if slept != 0 {
		t.Errorf("distinct providers waited %v, want 0", slept)
	}
}

func TestCooldownConcurrentCallersSerialize(t *testing.T) {
	c := NewCooldown(time.Millisecond)

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Wait("gemini")
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(stamps) != 4 {
		t.Fatalf("got %d completions, want 4", len(stamps))
	}
}
