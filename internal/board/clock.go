package board

import "time"

// Clocked is implemented by simulated boards whose clock is driven by the
// control loop instead of the wall clock.
type Clocked interface {
	// Advance moves simulated time forward by d.
	Advance(d time.Duration)
	// Done reports that the simulation has nothing left to play.
	Done() bool
}

// Commander supplies the vertical-channel command each cycle.
type Commander interface {
	Command() Command
}

// StaticCommand always returns the same command.
type StaticCommand Command

func (c StaticCommand) Command() Command { return Command(c) }

// Scaled is implemented by boards whose accelerometer scale differs from
// the configured default.
type Scaled interface {
	Acc1G() int32
}
