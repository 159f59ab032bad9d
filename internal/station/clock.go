package station

import (
	"context"
	"time"
)

// Clock supplies wall time and deadline waits to the scheduler.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Timing holds the scheduler's fixed intervals and thresholds.
type Timing struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	InputTimeout      time.Duration `yaml:"input_timeout"`
	TransitionSilence time.Duration `yaml:"transition_silence"`
	IdleThreshold     time.Duration `yaml:"idle_threshold"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	IdlePause         time.Duration `yaml:"idle_pause"`
}

func DefaultTiming() Timing {
	return Timing{
		PollInterval:      100 * time.Millisecond,
		InputTimeout:      5 * time.Second,
		TransitionSilence: 3 * time.Second,
		IdleThreshold:     10 * time.Second,
		SettleDelay:       2 * time.Second,
		IdlePause:         time.Second,
	}
}
