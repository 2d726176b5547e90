package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jensen-user/rew-bridge/internal/logging"
	"github.com/jensen-user/rew-bridge/internal/rew"
)

// Control state machine errors, mapped to HTTP statuses by the server.
var (
	ErrUnknownCommand = errors.New("unknown control action")
	ErrNotRunning     = errors.New("REW is not running")
)

const (
	defaultSettleDelay    = 2 * time.Second
	defaultReadyTimeout   = 30 * time.Second
	defaultTerminateGrace = 5 * time.Second
)

// Controller executes control commands against REW, serializing them so a
// multi-step restart cannot interleave with another command.
type Controller struct {
	mu sync.Mutex

	state       *State
	client      *rew.Client
	super       *rew.Supervisor
	callbackURL string
	meterConfig rew.MeterConfig
	logger      logging.Logger

	settleDelay    time.Duration
	readyTimeout   time.Duration
	terminateGrace time.Duration
}

// NewController wires the control state machine.
func NewController(state *State, client *rew.Client, super *rew.Supervisor, callbackURL string, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		state:          state,
		client:         client,
		super:          super,
		callbackURL:    callbackURL,
		meterConfig:    rew.DefaultMeterConfig(),
		logger:         logger,
		settleDelay:    defaultSettleDelay,
		readyTimeout:   defaultReadyTimeout,
		terminateGrace: defaultTerminateGrace,
	}
}

// Execute runs one control command. Action matching is case-insensitive.
// ErrUnknownCommand and ErrNotRunning are client-facing rejections; any
// other error means the command was accepted but REW refused or was
// unreachable, which the HTTP layer reports as a structured error result.
func (c *Controller) Execute(ctx context.Context, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch strings.ToLower(action) {
	case "start":
		return c.start(ctx)
	case "stop":
		return c.stop(ctx)
	case "restart":
		return c.restart(ctx)
	case "shutdown":
		c.shutdownREW(ctx)
		c.state.SetActive(false)
		return nil
	default:
		return ErrUnknownCommand
	}
}

func (c *Controller) start(ctx context.Context) error {
	if !c.state.Running() {
		return ErrNotRunning
	}
	// A new run gets a fresh window; stale samples from a previous run
	// must not leak into its 2-minute Leq.
	c.state.ClearWindow()
	if err := c.client.MeterCommand(ctx, "Start"); err != nil {
		return err
	}
	c.state.SetActive(true)
	return nil
}

func (c *Controller) stop(ctx context.Context) error {
	if !c.state.Running() {
		return ErrNotRunning
	}
	if err := c.client.MeterCommand(ctx, "Stop"); err != nil {
		return err
	}
	c.state.SetActive(false)
	return nil
}

// restart performs the full shutdown/relaunch sequence. The window is
// cleared and the measurement marked inactive on both outcomes; only
// rewRunning reflects whether the relaunch succeeded.
func (c *Controller) restart(ctx context.Context) error {
	c.logger.Info("restarting rew")
	c.shutdownREW(ctx)

	defer func() {
		c.state.ClearWindow()
		c.state.SetActive(false)
	}()

	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.Startup(ctx); err != nil {
		// A failed relaunch leaves the bridge down; the liveness flag
		// must not claim otherwise even if a half-started process
		// lingers until the next terminate.
		c.state.SetRunning(false)
		c.logger.Error("rew restart failed", logging.Field{Key: "error", Value: err})
		return err
	}
	c.logger.Info("rew restarted")
	return nil
}

// Startup launches REW and brings the subscription up: spawn, wait for the
// API, configure the meter, subscribe. Used at bridge boot and by restart.
func (c *Controller) Startup(ctx context.Context) error {
	if err := c.super.Launch(); err != nil {
		return err
	}
	c.state.SetRunning(true)

	if err := c.client.WaitReady(ctx, c.readyTimeout); err != nil {
		return err
	}
	if err := c.client.ConfigureMeter(ctx, c.meterConfig); err != nil {
		c.logger.Error("configure spl meter", logging.Field{Key: "error", Value: err})
	}
	if err := c.client.Subscribe(ctx, c.callbackURL); err != nil {
		c.logger.Error("subscribe to spl meter", logging.Field{Key: "error", Value: err})
		return err
	}
	return nil
}

// shutdownREW requests a graceful application exit over the API, then
// terminates the process with the force-kill backstop.
func (c *Controller) shutdownREW(ctx context.Context) {
	c.client.ShutdownApp(ctx)
	c.super.Terminate(c.terminateGrace)
	c.state.SetRunning(false)
}

// Shutdown tears REW down at bridge exit.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownREW(ctx)
	c.state.SetActive(false)
}
