package testing

import (
	"time"

	"github.com/getmockd/serialmock/pkg/template"
)

// PairBuilder configures one ask/answer pair using a fluent API.
type PairBuilder struct {
	device *Device
	ask    string
	delay  time.Duration
	times  int
}

// WithDelay holds the answer back for d.
func (b *PairBuilder) WithDelay(d time.Duration) *PairBuilder {
	b.delay = d
	return b
}

// Times limits how often the pair answers. Later matching frames go
// unanswered.
func (b *PairBuilder) Times(n int) *PairBuilder {
	b.times = n
	return b
}

// Reply sets the answer template and registers the pair. A template that
// does not parse fails the test.
func (b *PairBuilder) Reply(answer string) *Device {
	t := b.device.t
	t.Helper()

	ask, err := template.Parse(b.ask)
	if err != nil {
		t.Fatalf("invalid ask %q: %v", b.ask, err)
		return b.device
	}
	ans, err := template.Parse(answer)
	if err != nil {
		t.Fatalf("invalid answer %q: %v", answer, err)
		return b.device
	}

	b.device.add(&pair{ask: ask, answer: ans, delay: b.delay, remaining: b.times})
	return b.device
}
