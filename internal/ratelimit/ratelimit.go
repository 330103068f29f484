package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
)

// Pacer suspends the caller for a delay drawn from a band.
type Pacer interface {
	Wait(ctx context.Context, band config.DelayBand) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type RandomPacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

func NewRandomPacer() *RandomPacer {
	return NewRandomPacerWithSleep(Sleep)
}

// NewRandomPacerWithSleep lets tests observe delays without waiting them out.
func NewRandomPacerWithSleep(sleep SleepFunc) *RandomPacer {
	if sleep == nil {
		sleep = Sleep
	}
	return &RandomPacer{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleep,
	}
}

func (p *RandomPacer) Wait(ctx context.Context, band config.DelayBand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.sleep(ctx, p.Delay(band))
}

// Delay draws a duration uniformly from [band.Min, band.Max].
func (p *RandomPacer) Delay(band config.DelayBand) time.Duration {
	if band.Max <= band.Min {
		return band.Min
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delta := band.Max - band.Min
	jitter := time.Duration(p.rng.Int63n(int64(delta) + 1))
	return band.Min + jitter
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
