// Package timectrl paces a fixed-step simulation loop, either free-running
// or locked to wall-clock time.
package timectrl

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode describes how a run advances simulation time.
type Mode int

const (
	// Accelerated steps as fast as the loop can run.
	Accelerated Mode = iota
	// RealTime paces the loop so one simulated timestep takes one
	// wall-clock timestep.
	RealTime
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	default:
		return "accelerated"
	}
}

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accelerated":
		return Accelerated, nil
	case "realtime", "real-time":
		return RealTime, nil
	default:
		return Accelerated, fmt.Errorf("unknown pacing mode %q", s)
	}
}

// Pacer gates a fixed-step loop. In Accelerated mode Wait returns
// immediately. In RealTime mode each Wait sleeps until the next step
// boundary; boundaries are scheduled from the first call, so a step that
// runs long is absorbed by the following boundaries instead of shifting
// them all.
type Pacer struct {
	mode Mode
	step time.Duration
	next time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewPacer constructs a pacer with the given simulated timestep.
func NewPacer(mode Mode, step time.Duration) *Pacer {
	return &Pacer{mode: mode, step: step, now: time.Now, sleep: sleepContext}
}

// Mode reports the pacing mode.
func (p *Pacer) Mode() Mode { return p.mode }

// Wait blocks until the next step may run. It returns early with the
// context error if ctx is done first.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.mode != RealTime {
		return nil
	}
	if p.next.IsZero() {
		p.next = p.now()
	}
	p.next = p.next.Add(p.step)
	if d := p.next.Sub(p.now()); d > 0 {
		return p.sleep(ctx, d)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
