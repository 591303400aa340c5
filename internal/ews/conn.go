package ews

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when no live Exchange session exists. The
// pipeline treats it as fatal for the run.
var ErrNotConnected = errors.New("ews: not connected")

// Connection states.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Conn manages the Exchange session. The original kept the account as a
// hidden module global; here the lifecycle is explicit and injected.
type Conn struct {
	endpoint string
	client   *resty.Client
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
}

// ConnOption configures the connection.
type ConnOption func(*Conn)

func WithTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.client.SetTimeout(d) }
}

func WithRestyClient(rc *resty.Client) ConnOption {
	return func(c *Conn) { c.client = rc }
}

// NewConn builds a connection manager against
// https://<server>/EWS/Exchange.asmx with basic credentials.
func NewConn(server, username, password string, logger zerolog.Logger, opts ...ConnOption) *Conn {
	c := &Conn{
		endpoint: fmt.Sprintf("https://%s/EWS/Exchange.asmx", server),
		client: resty.New().
			SetBasicAuth(username, password).
			SetTimeout(5 * time.Minute).
			SetHeader("Content-Type", "text/xml; charset=utf-8"),
		logger: logger.With().Str("component", "ews_conn").Logger(),
		state:  StateDisconnected,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewConnForEndpoint builds a connection manager for an explicit endpoint
// URL (used by tests against a local server).
func NewConnForEndpoint(endpoint, username, password string, logger zerolog.Logger, opts ...ConnOption) *Conn {
	c := NewConn("placeholder", username, password, logger, opts...)
	c.endpoint = endpoint
	return c
}

// State returns the current session state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnsureConnected verifies the session, probing the server on first use or
// after a failure. Returns ErrNotConnected when the probe fails.
func (c *Conn) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		return nil
	}
	return c.probeLocked(ctx)
}

// Reconnect forces a fresh probe regardless of current state.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeLocked(ctx)
}

func (c *Conn) probeLocked(ctx context.Context) error {
	resp, err := c.post(ctx, getFolderProbeXML)
	if err != nil {
		c.state = StateFailed
		c.logger.Error().Err(err).Msg("ews probe failed")
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	_ = resp

	c.state = StateConnected
	c.logger.Info().Str("endpoint", c.endpoint).Msg("ews connected")
	return nil
}

// post sends a SOAP envelope and returns the raw response body. Transport
// and HTTP-level failures flip the session to failed.
func (c *Conn) post(ctx context.Context, envelope string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(envelope).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("ews transport: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("ews status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// call sends a SOAP envelope on an established session, degrading the state
// on failure so the next run reconnects.
func (c *Conn) call(ctx context.Context, envelope string) ([]byte, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		if err := c.probeLocked(ctx); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	body, err := c.post(ctx, envelope)
	if err != nil {
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		return nil, err
	}
	return body, nil
}
