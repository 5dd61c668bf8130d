package agent

import (
	"context"
	"math/rand"
	"time"
)

// JitterPolicy produces randomized sleep intervals in [Min, Max]. Uniform
// timing is a bot fingerprint, so every pacing decision in the loop goes
// through one of these. The zero policy never sleeps, which is what tests
// want.
type JitterPolicy struct {
	Min  time.Duration
	Max  time.Duration
	Rand func(n int64) int64 // injectable; defaults to rand.Int63n
}

// Duration picks the next interval.
func (p JitterPolicy) Duration() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	intn := p.Rand
	if intn == nil {
		intn = rand.Int63n
	}
	return p.Min + time.Duration(intn(int64(p.Max-p.Min)))
}

// Sleep blocks for a jittered interval or until the context ends.
func (p JitterPolicy) Sleep(ctx context.Context) {
	d := p.Duration()
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Seconds builds a policy from whole-second bounds as they appear in config.
func Seconds(min, max int) JitterPolicy {
	return JitterPolicy{
		Min: time.Duration(min) * time.Second,
		Max: time.Duration(max) * time.Second,
	}
}
