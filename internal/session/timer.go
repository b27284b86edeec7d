package session

import (
	"sync"
	"time"
)

// expirySchedule arms one-shot callbacks keyed by name. Re-scheduling a key
// replaces its armed timer, suppressing the superseded callback; this is
// what keeps a participant visible in the typing set across repeated
// typing envelopes without duplicate expiry events.
type expirySchedule struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	current map[string]uint64
}

func newExpirySchedule(delay time.Duration) *expirySchedule {
	return &expirySchedule{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		current: make(map[string]uint64),
	}
}

// schedule arms onExpire to fire after the configured delay, replacing any
// timer already armed for key. A replaced timer's callback never fires,
// even if it was already in flight when the replacement was armed: each
// armed timer carries a generation number, and a callback whose generation
// is stale gives up.
func (e *expirySchedule) schedule(key string, onExpire func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[key]; ok {
		t.Stop()
	}
	gen := e.current[key] + 1
	e.current[key] = gen
	e.timers[key] = time.AfterFunc(e.delay, func() {
		e.mu.Lock()
		if e.current[key] != gen {
			e.mu.Unlock()
			return
		}
		delete(e.timers, key)
		delete(e.current, key)
		e.mu.Unlock()
		onExpire()
	})
}

// stopAll cancels every armed timer.
func (e *expirySchedule) stopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
		delete(e.current, key)
	}
}
