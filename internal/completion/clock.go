// ABOUTME: Minimal clock abstraction so backoff delays are testable
// ABOUTME: Production code injects the real clock; tests inject a fake

package completion

import "time"

// Clock abstracts the time operations the client needs. Tests substitute
// a fake to verify backoff without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// realClock delegates to the time package.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the production Clock.
func RealClock() Clock { return realClock{} }
