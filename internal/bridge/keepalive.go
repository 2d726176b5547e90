package bridge

import (
	"context"
	"time"

	"github.com/jensen-user/rew-bridge/internal/logging"
	"github.com/jensen-user/rew-bridge/internal/rew"
)

// DefaultKeepaliveInterval is how often the subscription keepalive probes REW.
const DefaultKeepaliveInterval = 60 * time.Second

// Keepalive detects silently dropped subscriptions. Telemetry delivery is
// push-based, so the bridge gets no direct signal when REW stops pushing:
// instead this loop probes REW's liveness endpoint and resubscribes on an
// unhealthy answer. A network-level failure means REW itself is gone; that
// flips the liveness flag and leaves recovery to an explicit restart.
type Keepalive struct {
	state       *State
	client      *rew.Client
	callbackURL string
	interval    time.Duration
	logger      logging.Logger
}

// NewKeepalive builds the keepalive loop.
func NewKeepalive(state *State, client *rew.Client, callbackURL string, logger logging.Logger) *Keepalive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Keepalive{
		state:       state,
		client:      client,
		callbackURL: callbackURL,
		interval:    DefaultKeepaliveInterval,
		logger:      logger,
	}
}

// Run probes until the context is canceled. The caller waits for Run to
// return before tearing down, so no probe fires once shutdown has begun.
func (k *Keepalive) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !k.state.Running() {
			continue
		}

		err := k.client.Probe(ctx)
		if ctx.Err() != nil {
			// Shutdown began while the probe was in flight; the
			// failure says nothing about REW's health.
			return
		}
		switch {
		case err == nil:
		case rew.Unavailable(err):
			k.logger.Warn("lost connection to rew api", logging.Field{Key: "error", Value: err})
			k.state.SetRunning(false)
		default:
			k.logger.Warn("rew api unhealthy, resubscribing", logging.Field{Key: "error", Value: err})
			if subErr := k.client.Subscribe(ctx, k.callbackURL); subErr != nil {
				k.logger.Error("resubscribe failed", logging.Field{Key: "error", Value: subErr})
			}
		}
	}
}
