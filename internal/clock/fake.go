package clock

import "time"

// FakeClock pins Now so tests get deterministic sync watermarks and "today"
// range boundaries.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (f *FakeClock) Now() time.Time { return f.now }

// Advance moves the clock forward, e.g. between a download and the
// incremental update that follows it.
func (f *FakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }
