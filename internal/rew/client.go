// Package rew talks to a local REW (Room EQ Wizard) instance: launching and
// terminating the process, and driving its localhost HTTP API to configure
// the SPL meter, manage the push subscription, and relay commands.
package rew

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/jensen-user/rew-bridge/internal/logging"
)

// Error kinds for outbound API calls. Callers classify with errors.Is/As and
// convert to log lines or availability flags; none of these escapes as a
// fault that could take down the bridge loop.
var (
	ErrAPIUnreachable = errors.New("rew api unreachable")
	ErrAPITimeout     = errors.New("rew api timeout")
)

// StatusError reports a non-2xx response from the REW API.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rew api %s: status %d", e.Endpoint, e.Code)
}

const (
	// meterNumber is fixed: the bridge drives a single SPL meter.
	meterNumber = 1

	defaultCallTimeout = 10 * time.Second
	probeTimeout       = 5 * time.Second
	readyPollInterval  = 500 * time.Millisecond
)

// MeterConfig is the one-shot SPL meter configuration pushed to REW.
type MeterConfig struct {
	Mode              string `json:"mode"`
	Weighting         string `json:"weighting"`
	Filter            string `json:"filter"`
	RollingLeqActive  bool   `json:"rollingLeqActive"`
	RollingLeqMinutes int    `json:"rollingLeqMinutes"`
}

// DefaultMeterConfig returns the bridge's standard meter setup: A-weighted,
// slow response, with a 15-minute rolling Leq reported by REW itself.
func DefaultMeterConfig() MeterConfig {
	return MeterConfig{
		Mode:              "SPL",
		Weighting:         "A",
		Filter:            "Slow",
		RollingLeqActive:  true,
		RollingLeqMinutes: 15,
	}
}

// Client issues calls against the REW HTTP API.
type Client struct {
	base   string
	http   *http.Client
	logger logging.Logger
}

// NewClient builds a client for the REW API at the given base URL, e.g.
// "http://localhost:4735".
func NewClient(base string, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: defaultCallTimeout},
		logger: logger,
	}
}

// WaitReady polls the application root endpoint at a fixed interval until
// REW answers 200 or the timeout elapses. Connection refusals while REW is
// still starting are expected and treated as "not yet ready".
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	poll := backoff.WithContext(backoff.NewConstantBackOff(readyPollInterval), ctx)
	err := backoff.Retry(func() error {
		status, err := c.get(ctx, "/application")
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return &StatusError{Endpoint: "/application", Code: status}
		}
		return nil
	}, poll)
	if err != nil {
		return fmt.Errorf("rew api not ready within %s: %w", timeout, err)
	}
	c.logger.Info("rew api ready")
	return nil
}

// ConfigureMeter pushes the SPL meter configuration.
func (c *Client) ConfigureMeter(ctx context.Context, cfg MeterConfig) error {
	return c.postExpectOK(ctx, fmt.Sprintf("/spl-meter/%d/configuration", meterNumber), cfg)
}

// Subscribe registers the bridge's callback endpoint so REW starts pushing
// SPL updates. Safe to repeat; REW treats resubscription as idempotent.
func (c *Client) Subscribe(ctx context.Context, callbackURL string) error {
	body := map[string]string{"callbackUrl": callbackURL}
	if err := c.postExpectOK(ctx, fmt.Sprintf("/spl-meter/%d/subscribe", meterNumber), body); err != nil {
		return err
	}
	c.logger.Info("subscribed to spl meter updates", logging.Field{Key: "callback", Value: callbackURL})
	return nil
}

// MeterCommand sends a command ("Start" or "Stop") to the SPL meter.
func (c *Client) MeterCommand(ctx context.Context, command string) error {
	body := map[string]string{"command": command}
	if err := c.postExpectOK(ctx, fmt.Sprintf("/spl-meter/%d/command", meterNumber), body); err != nil {
		return err
	}
	c.logger.Info("spl meter command sent", logging.Field{Key: "command", Value: command})
	return nil
}

// ShutdownApp asks REW to exit gracefully. Connection errors are ignored:
// REW may already be tearing down its API when the request lands.
func (c *Client) ShutdownApp(ctx context.Context) {
	body := map[string]string{"command": "shutdown"}
	if err := c.postExpectOK(ctx, "/application/command", body); err != nil {
		c.logger.Debug("shutdown command not delivered", logging.Field{Key: "error", Value: err})
		return
	}
	c.logger.Info("rew shutdown command sent")
}

// Probe performs a short liveness check against the application endpoint.
// It returns nil when REW answers 200, a StatusError on any other status,
// and ErrAPIUnreachable/ErrAPITimeout on network-level failure.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	status, err := c.get(ctx, "/application")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &StatusError{Endpoint: "/application", Code: status}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, classify(path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, nil
}

func (c *Client) postExpectOK(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: path, Code: resp.StatusCode}
	}
	return nil
}

// classify maps transport errors onto the package's error kinds, preserving
// the underlying error text. Caller-initiated cancellation passes through
// untouched: it carries no verdict on REW's reachability.
func classify(path string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrAPITimeout, path, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrAPITimeout, path, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrAPIUnreachable, path, err)
}

// Unavailable reports whether err indicates REW could not be reached at the
// network level (as opposed to reached but unhappy).
func Unavailable(err error) bool {
	return errors.Is(err, ErrAPIUnreachable) || errors.Is(err, ErrAPITimeout)
}
