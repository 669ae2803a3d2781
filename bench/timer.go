package bench

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimerStateViolation is returned (via panic, matching the original
// harness's fatal TimerStateViolation) when Start or Stop is called out of
// sequence: Start while already running, or Stop while not running.
var ErrTimerStateViolation = errors.New("bench: timer start/stop called out of sequence")

// Timer mirrors the original benchmark's Timer<Clock>, reading
// CLOCK_MONOTONIC directly rather than going through time.Now's
// wall-clock-adjustable source.
type Timer struct {
	running bool
	start   unix.Timespec
	elapsed time.Duration
}

// Start begins timing. It panics with ErrTimerStateViolation if the timer
// is already running.
func (t *Timer) Start() {
	if t.running {
		panic(ErrTimerStateViolation)
	}
	ts, err := monotonicNow()
	if err != nil {
		panic(err)
	}
	t.start = ts
	t.running = true
}

// Stop ends timing and accumulates the elapsed duration. It panics with
// ErrTimerStateViolation if the timer is not running.
func (t *Timer) Stop() {
	if !t.running {
		panic(ErrTimerStateViolation)
	}
	ts, err := monotonicNow()
	if err != nil {
		panic(err)
	}
	t.elapsed += timespecDiff(t.start, ts)
	t.running = false
}

// Elapsed returns the total duration accumulated across Start/Stop pairs
// since the Timer was created or last reset via a fresh Timer value.
func (t *Timer) Elapsed() time.Duration { return t.elapsed }

func monotonicNow() (unix.Timespec, error) {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return ts, err
}

func timespecDiff(start, stop unix.Timespec) time.Duration {
	sec := stop.Sec - start.Sec
	nsec := stop.Nsec - start.Nsec
	return time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond
}
