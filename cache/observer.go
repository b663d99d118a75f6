package cache

import "time"

// Clock supplies the current time to a Store.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Observer receives store lifecycle events. Implementations must be safe for
// concurrent use; they are always invoked outside the store lock.
type Observer interface {
	// Hit is called when a lookup returns a fresh value.
	Hit(store string)

	// Miss is called when a lookup finds nothing or an expired value.
	Miss(store string)

	// Evicted is called when an entry is dropped to make room for a new key.
	Evicted(store string)

	// Expired is called with the number of entries removed because their TTL elapsed.
	Expired(store string, count int)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) Hit(string)          {}
func (NoopObserver) Miss(string)         {}
func (NoopObserver) Evicted(string)      {}
func (NoopObserver) Expired(string, int) {}
