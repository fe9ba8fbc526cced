package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
)

// DefaultPollInterval is the default time between server state checks.
const DefaultPollInterval = 5 * time.Second

// DefaultPollTimeout is the maximum time to wait for a server to come online.
const DefaultPollTimeout = 10 * time.Minute

// PollConfig holds configurable timing for the wait-online loop.
// Tests inject short durations to avoid real sleeping.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPollConfig returns the production polling configuration.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: DefaultPollInterval, Timeout: DefaultPollTimeout}
}

// WaitOnline polls the server state at regular intervals until it reports
// ONLINE, the startup fails, the timeout expires, or the context is
// cancelled. The state is checked once immediately before the first tick.
// Transient describe errors are reported to w and do not abort the loop.
func WaitOnline(ctx context.Context, client lakeaws.DescribeServerAPI, serverID string, cfg PollConfig, w io.Writer) error {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()

	start := time.Now()

	// Check immediately before the first tick.
	if done, err := checkOnline(ctx, client, serverID, w); done || err != nil {
		return err
	}
	fmt.Fprintf(w, "Waiting for server %s... %s\n", serverID, formatElapsed(time.Since(start)))

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for server %s cancelled: %w", serverID, ctx.Err())

		case <-deadline.C:
			return fmt.Errorf("server %s did not come online within %s", serverID, cfg.Timeout)

		case <-ticker.C:
			done, err := checkOnline(ctx, client, serverID, w)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			fmt.Fprintf(w, "Waiting for server %s... %s\n", serverID, formatElapsed(time.Since(start)))
		}
	}
}

// checkOnline performs a single state check. It returns (true, nil) when the
// server is online, a non-nil error when startup has failed, and
// (false, nil) for intermediate states and transient describe errors.
func checkOnline(ctx context.Context, client lakeaws.DescribeServerAPI, serverID string, w io.Writer) (bool, error) {
	state, err := ServerState(ctx, client, serverID)
	if err != nil {
		// Transient API errors shouldn't abort; keep polling.
		fmt.Fprintf(w, "Waiting for server %s... (check failed: %v)\n", serverID, err)
		return false, nil
	}

	switch state {
	case transfertypes.StateOnline:
		fmt.Fprintf(w, "Server %s is online.\n", serverID)
		return true, nil
	case transfertypes.StateStartFailed:
		return false, fmt.Errorf("server %s failed to start", serverID)
	default:
		return false, nil
	}
}

// formatElapsed formats a duration as "Xm Ys" for progress output.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
