package apify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// pollConfig controls the run polling loop.
type pollConfig struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	timeout         time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initialInterval: 2 * time.Second,
		maxInterval:     15 * time.Second,
		timeout:         5 * time.Minute,
	}
}

// RunOption configures RunAndWait.
type RunOption func(*pollConfig)

// WithPollInterval sets the initial poll interval.
func WithPollInterval(d time.Duration) RunOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.initialInterval = d
		}
	}
}

// WithRunTimeout bounds the total wait for the run to finish.
func WithRunTimeout(d time.Duration) RunOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// RunAndWait starts the actor and polls until the run reaches a terminal
// status, then returns the finished run. The poll interval doubles up to a
// cap so short runs return fast without hammering the API on long ones.
func RunAndWait(ctx context.Context, c Client, actorID string, input any, opts ...RunOption) (*Run, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	run, err := c.StartRun(ctx, actorID, input)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("apify run started",
		zap.String("actor_id", actorID),
		zap.String("run_id", run.ID))

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	interval := cfg.initialInterval
	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "apify: run %s did not finish within %s", run.ID, cfg.timeout)
		case <-time.After(interval):
		}

		run, err = c.GetRun(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		if run.Finished() {
			break
		}

		interval *= 2
		if interval > cfg.maxInterval {
			interval = cfg.maxInterval
		}
	}

	if run.Status != RunSucceeded {
		return nil, eris.Errorf("apify: run %s finished with status %s", run.ID, run.Status)
	}
	return run, nil
}
