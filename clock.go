package main

import "time"

const (
	TickRate = 60 // fixed updates per second
	// FixedStep is the simulated duration of one fixed update
	FixedStep = time.Second / TickRate
	// MaxFrameLag bounds the accumulator; a larger backlog is discarded
	MaxFrameLag = 200 * time.Millisecond
)

// SimulationClock turns variable frame deltas into whole fixed steps. The
// accumulator is reset to exactly one step on the first frame and whenever
// its magnitude reaches MaxFrameLag, so a stall never causes a burst of
// catch-up ticks.
type SimulationClock struct {
	elapsed time.Duration
	reset   bool
	step    func()
	ticks   uint64
}

func NewSimulationClock(step func()) *SimulationClock {
	return &SimulationClock{
		elapsed: FixedStep,
		reset:   true,
		step:    step,
	}
}

// Advance feeds one measured frame delta and runs as many fixed steps as the
// accumulator holds. It returns the number of steps run.
func (c *SimulationClock) Advance(delta time.Duration) int {
	c.elapsed += delta
	if c.reset || c.elapsed >= MaxFrameLag || c.elapsed <= -MaxFrameLag {
		c.reset = false
		c.elapsed = FixedStep
	}

	n := 0
	for c.elapsed >= FixedStep {
		c.elapsed -= FixedStep
		c.step()
		n++
	}
	c.ticks += uint64(n)
	return n
}

// Ticks returns the total number of fixed steps run
func (c *SimulationClock) Ticks() uint64 {
	return c.ticks
}

// Pending returns the time banked toward the next step
func (c *SimulationClock) Pending() time.Duration {
	return c.elapsed
}
