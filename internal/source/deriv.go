// Deriv WebSocket implementation of the history source.
//
// The protocol is message-oriented JSON over one persistent connection:
// an authorize request carrying the credential token, then any number of
// ticks_history requests. The collector is strictly sequential, so each
// request is followed by exactly one response read on the same connection.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/johnayoung/go-tick-collector/internal/errors"
)

const (
	// Dial retry configuration. Only the transport dial is retried;
	// authorization and page requests are never retried automatically.
	dialInitialDelay = 1 * time.Second
	dialMaxDelay     = 15 * time.Second
	dialMaxElapsed   = 1 * time.Minute

	writeWait    = 10 * time.Second
	readWait     = 60 * time.Second
	maxFrameSize = 10 << 20

	// defaultPipSize is assumed when a response omits the precision hint.
	defaultPipSize = 2
)

// DerivClient is a session-oriented client for the Deriv streaming quote API.
// It is not safe for concurrent use; the run owns it exclusively.
type DerivClient struct {
	endpoint string
	token    string
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	loginID string
}

// NewDerivClient creates a client for the given endpoint and credential.
// pageDelay is the minimum spacing between history requests; zero disables
// pacing (used by tests).
func NewDerivClient(endpoint, token string, pageDelay time.Duration, logger *slog.Logger) *DerivClient {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if pageDelay > 0 {
		limit = rate.Every(pageDelay)
	}
	return &DerivClient{
		endpoint: endpoint,
		token:    token,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Connect dials the WebSocket endpoint and authorizes the session. The dial
// is retried with exponential backoff; a rejected credential is fatal and
// never retried.
func (c *DerivClient) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return apperrors.New(apperrors.KindTransport, "connect", err)
	}
	c.logger.Info("connected to quote source", "endpoint", c.endpoint)

	if err := c.authorize(ctx); err != nil {
		return err
	}
	c.logger.Info("authorized", "login_id", c.loginID)
	return nil
}

func (c *DerivClient) dial(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = dialInitialDelay
	policy.MaxInterval = dialMaxDelay
	policy.MaxElapsedTime = dialMaxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
		if err != nil {
			c.logger.Warn("dial failed", "attempt", attempt, "error", err)
			return err
		}
		conn.SetReadLimit(maxFrameSize)
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (c *DerivClient) authorize(ctx context.Context) error {
	var resp struct {
		Authorize *struct {
			LoginID string `json:"loginid"`
		} `json:"authorize"`
		Error *apiError `json:"error"`
	}

	req := map[string]any{"authorize": c.token}
	if err := c.roundTrip(ctx, req, &resp); err != nil {
		return apperrors.New(apperrors.KindTransport, "authorize", err)
	}
	if resp.Error != nil {
		return apperrors.Newf(apperrors.KindAuthentication, "authorize",
			"authorization rejected: %s", resp.Error.Message)
	}
	if resp.Authorize == nil {
		return apperrors.Newf(apperrors.KindAuthentication, "authorize",
			"authorization response missing authorize payload")
	}
	c.loginID = resp.Authorize.LoginID
	return nil
}

// LoginID returns the authorized identity, for diagnostics only.
func (c *DerivClient) LoginID() string {
	return c.loginID
}

// FetchHistory implements HistorySource. It issues one ticks_history request
// asking for up to req.Count samples ending at req.End, with the source
// adjusting the actual start to fit available data, floor-bounded at
// req.Start.
func (c *DerivClient) FetchHistory(ctx context.Context, req HistoryRequest) (*HistoryPage, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.New(apperrors.KindAPI, "ticks_history", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.New(apperrors.KindTransport, "ticks_history", err)
	}

	payload := map[string]any{
		"ticks_history":     req.Symbol,
		"adjust_start_time": 1,
		"count":             req.Count,
		"end":               req.End,
		"start":             req.Start,
		"style":             "ticks",
	}

	var resp struct {
		History *struct {
			Times  []int64   `json:"times"`
			Prices []float64 `json:"prices"`
		} `json:"history"`
		PipSize *int      `json:"pip_size"`
		Error   *apiError `json:"error"`
	}

	if err := c.roundTrip(ctx, payload, &resp); err != nil {
		return nil, apperrors.New(apperrors.KindTransport, "ticks_history", err)
	}
	if resp.Error != nil {
		return nil, apperrors.Newf(apperrors.KindAPI, "ticks_history",
			"source rejected request for %s: %s", req.Symbol, resp.Error.Message)
	}
	if resp.History == nil {
		return nil, apperrors.Newf(apperrors.KindAPI, "ticks_history",
			"response for %s carries no history data", req.Symbol)
	}
	if len(resp.History.Times) != len(resp.History.Prices) {
		return nil, apperrors.Newf(apperrors.KindAPI, "ticks_history",
			"mismatched history arrays for %s: %d times, %d prices",
			req.Symbol, len(resp.History.Times), len(resp.History.Prices))
	}

	pipSize := defaultPipSize
	if resp.PipSize != nil {
		pipSize = *resp.PipSize
	}

	return &HistoryPage{
		Times:   resp.History.Times,
		Quotes:  resp.History.Prices,
		PipSize: pipSize,
	}, nil
}

// roundTrip sends one JSON request and reads one JSON response on the
// session connection.
func (c *DerivClient) roundTrip(ctx context.Context, req, resp any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	if err := conn.ReadJSON(resp); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return nil
}

// Close releases the transport. Safe to call when the connection was never
// established.
func (c *DerivClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
