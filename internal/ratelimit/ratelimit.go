package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer inserts a courtesy delay before every request. The delay is drawn
// uniformly from [min, max] on each Wait; it is a pacing aid, not a hard
// rate guarantee.
type Pacer struct {
	mu  sync.Mutex
	min time.Duration
	max time.Duration
}

func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max}
}

// Wait sleeps for one drawn interval or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.delay()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// SetInterval adjusts the pacing bounds for subsequent waits.
func (p *Pacer) SetInterval(min, max time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if max < min {
		max = min
	}
	p.min = min
	p.max = max
}

func (p *Pacer) delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.max <= p.min {
		return p.min
	}
	return p.min + time.Duration(rand.Int63n(int64(p.max-p.min)))
}
