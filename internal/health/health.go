// Package health aggregates per-dependency liveness probes.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a ping function into a Checker.
type CheckerFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.CheckerName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// Status is the aggregate probe outcome.
type Status struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checkedAt"`
}

// Aggregator runs all checkers concurrently with a shared timeout.
type Aggregator struct {
	checkers []Checker
	timeout  time.Duration
	log      zerolog.Logger
}

// NewAggregator builds an Aggregator over the given checkers.
func NewAggregator(timeout time.Duration, log zerolog.Logger, checkers ...Checker) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{checkers: checkers, timeout: timeout, log: log}
}

// Check probes every dependency. A single failing component marks the whole
// status unhealthy; the per-component map carries "ok" or the error text.
func (a *Aggregator) Check(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	status := Status{
		Healthy:    true,
		Components: make(map[string]string, len(a.checkers)),
		CheckedAt:  time.Now().UTC(),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range a.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			err := c.Check(probeCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warn().Err(err).Str("component", c.Name()).Msg("health probe failed")
				status.Components[c.Name()] = err.Error()
				status.Healthy = false
				return
			}
			status.Components[c.Name()] = "ok"
		}(c)
	}
	wg.Wait()
	return status
}
