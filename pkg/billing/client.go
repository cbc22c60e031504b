package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/internal/version"
)

const requestTimeout = 10 * time.Second

// bypassCreditBalance is the synthetic balance reported while bypass mode is
// active. Large enough that no realistic requirement is denied.
const bypassCreditBalance = 1_000_000

// ClientConfig configures a billing client.
type ClientConfig struct {
	BaseURL string
	APIKey  string

	// Bypass short-circuits every remote call: checks always allow with a
	// fixed large balance and deductions succeed without network traffic.
	// Used for local development and tests.
	Bypass bool

	// DashboardURL is surfaced as the action URL when the billing service
	// itself is unreachable, so denials always carry a coherent next step.
	DashboardURL string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger scopes client log output. Defaults to the global logger.
	Logger *zerolog.Logger
}

// Client talks to the remote billing authority. All methods honor bypass
// mode without touching the network.
type Client struct {
	cfg    ClientConfig
	client *http.Client
	logger zerolog.Logger
}

// NewClient creates a billing client.
func NewClient(cfg ClientConfig) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "billing").Logger(),
	}
}

// Bypass reports whether the client is in bypass mode.
func (c *Client) Bypass() bool {
	return c.cfg.Bypass
}

type checkRequest struct {
	UserID      string      `json:"userId"`
	Tool        string      `json:"tool"`
	Requirement Requirement `json:"requirement"`
}

type deductRequest struct {
	UserID  string `json:"userId"`
	Tool    string `json:"tool"`
	Credits int    `json:"credits"`
}

// Check asks the billing authority whether userID may invoke tool under the
// given requirement. Transport failure fails closed: the returned decision
// denies with a reason and the configured dashboard URL, and the transport
// error is returned alongside for logging.
func (c *Client) Check(ctx context.Context, userID string, req Requirement, tool string) (Decision, error) {
	if c.cfg.Bypass {
		balance := bypassCreditBalance
		return Decision{Allowed: true, Credits: &balance}, nil
	}

	var decision Decision
	err := c.post(ctx, "/v1/billing/check", checkRequest{UserID: userID, Tool: tool, Requirement: req}, &decision)
	if err != nil {
		return Decision{
			Allowed:   false,
			Reason:    "billing service unreachable",
			ActionURL: c.cfg.DashboardURL,
		}, err
	}
	return decision, nil
}

// Deduct records consumption of credits after a successful call. Callers
// treat failure as fire-and-forget; the result already delivered to the user
// is never unwound.
func (c *Client) Deduct(ctx context.Context, userID string, credits int, tool string) error {
	if c.cfg.Bypass {
		return nil
	}
	return c.post(ctx, "/v1/billing/deduct", deductRequest{UserID: userID, Tool: tool, Credits: credits}, nil)
}

// Status fetches the current balance and tier for a user.
func (c *Client) Status(ctx context.Context, userID string) (Decision, error) {
	if c.cfg.Bypass {
		balance := bypassCreditBalance
		return Decision{Allowed: true, Credits: &balance}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/billing/status/"+userID, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("building status request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("fetching billing status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Decision{}, fmt.Errorf("billing service returned status %d", resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Decision{}, fmt.Errorf("decoding billing status: %w", err)
	}
	return decision, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding billing request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building billing request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling billing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("billing service returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding billing response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Tollgate-SDK-Version", version.Version)
}
