package relay

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// backoff doubles from base up to max on consecutive failures.
type backoff struct {
	base, max, cur time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max}
}

func (b *backoff) next() time.Duration {
	switch {
	case b.cur < b.base:
		b.cur = b.base
	case b.cur*2 > b.max:
		b.cur = b.max
	default:
		b.cur *= 2
	}
	return jitter(b.cur)
}

func (b *backoff) reset() {
	b.cur = 0
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
