package timer

import "time"

// FakeProvider builds Countdowns that only move when Advance is called
// on them (as a handler's AdvanceTime does) or when the test calls
// AdvanceAll. It never reads the wall clock.
type FakeProvider struct {
	countdowns []*countdown
}

// NewFakeProvider returns a Provider whose Countdowns advance only
// through Advance or through AdvanceAll on the provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// NewCountdown returns a Countdown tracked by this provider so a
// single AdvanceAll call can move every timer a handler owns.
func (p *FakeProvider) NewCountdown(d time.Duration) Countdown {
	c := &countdown{duration: d, remaining: d, running: d > 0}
	p.countdowns = append(p.countdowns, c)
	return c
}

// AdvanceAll advances every Countdown this provider has ever created
// by d, as if that much wall-clock time passed in one host tick.
func (p *FakeProvider) AdvanceAll(d time.Duration) {
	for _, c := range p.countdowns {
		c.Advance(d)
	}
}
