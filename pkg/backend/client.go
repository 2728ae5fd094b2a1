package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bank-dashboard/pkg/logging"
	"bank-dashboard/pkg/metrics"
	"bank-dashboard/pkg/resilience"
	"bank-dashboard/pkg/transaction"

	"go.uber.org/zap"
)

// Backend endpoints.
const (
	EndpointTransactions        = "/api/transactions"
	EndpointCreateLinkToken     = "/api/create_link_token"
	EndpointExchangePublicToken = "/api/exchange_public_token"
)

// DefaultBaseURL is the hosted dashboard backend.
const DefaultBaseURL = "https://bank-dashboard-backend-hmux.onrender.com"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL of the backend, without trailing slash
	BaseURL string

	// Resilience configures per-endpoint timeout and circuit breaker
	Resilience resilience.Config

	// HTTPClient overrides the transport (optional)
	HTTPClient *http.Client

	// Metrics receives per-call metrics (optional)
	Metrics metrics.MetricsCollector

	// Logger for call diagnostics (optional)
	Logger *logging.Logger
}

// DefaultClientConfig returns a configuration pointing at DefaultBaseURL.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    DefaultBaseURL,
		Resilience: resilience.DefaultConfig(),
	}
}

// Client talks to the transactions backend. It makes exactly one attempt per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breakers   map[string]*resilience.Breaker
	metrics    metrics.MetricsCollector
	logger     *logging.Logger
}

// NewClient creates a backend client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	c := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: config.HTTPClient,
		breakers:   make(map[string]*resilience.Breaker),
		metrics:    config.Metrics,
		logger:     config.Logger.Named("backend"),
	}

	for _, endpoint := range []string{EndpointTransactions, EndpointCreateLinkToken, EndpointExchangePublicToken} {
		c.breakers[endpoint] = resilience.NewBreakerWithMetrics(endpoint, config.Resilience, config.Metrics)
	}

	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type transactionsResponse struct {
	Transactions *[]transaction.Record `json:"transactions"`
	Error        json.RawMessage       `json:"error"`
}

type linkTokenResponse struct {
	LinkToken *string         `json:"link_token"`
	Error     json.RawMessage `json:"error"`
}

type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

// FetchTransactions issues GET /api/transactions and returns the records in
// server order. An empty array is a successful, empty result.
func (c *Client) FetchTransactions(ctx context.Context) ([]transaction.Record, error) {
	var records []transaction.Record

	err := c.call(ctx, http.MethodGet, EndpointTransactions, nil, func(status int, body []byte) error {
		var payload transactionsResponse
		if err := decodeObject(body, &payload); err != nil {
			return &RequestError{Kind: ErrTransport, Endpoint: EndpointTransactions, Status: status, Err: err}
		}
		if !isSuccess(status) {
			return &RequestError{Kind: ErrBackend, Endpoint: EndpointTransactions, Status: status, Message: errorMessage(payload.Error)}
		}
		if payload.Transactions == nil {
			return &RequestError{
				Kind:     ErrShape,
				Endpoint: EndpointTransactions,
				Status:   status,
				Err:      fmt.Errorf("missing transactions field in %s", snippet(body)),
			}
		}
		records = *payload.Transactions
		return nil
	})
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []transaction.Record{}
	}
	return records, nil
}

// CreateLinkToken issues POST /api/create_link_token and returns the opaque token.
func (c *Client) CreateLinkToken(ctx context.Context) (string, error) {
	var token string

	err := c.call(ctx, http.MethodPost, EndpointCreateLinkToken, nil, func(status int, body []byte) error {
		var payload linkTokenResponse
		if err := decodeObject(body, &payload); err != nil {
			return &RequestError{Kind: ErrTransport, Endpoint: EndpointCreateLinkToken, Status: status, Err: err}
		}
		if !isSuccess(status) {
			return &RequestError{Kind: ErrBackend, Endpoint: EndpointCreateLinkToken, Status: status, Message: errorMessage(payload.Error)}
		}
		if payload.LinkToken == nil || *payload.LinkToken == "" {
			return &RequestError{
				Kind:     ErrShape,
				Endpoint: EndpointCreateLinkToken,
				Status:   status,
				Err:      fmt.Errorf("missing link_token field in %s", snippet(body)),
			}
		}
		token = *payload.LinkToken
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ExchangePublicToken posts the widget's public token to the backend.
// The response body of a successful exchange is ignored.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) error {
	return c.call(ctx, http.MethodPost, EndpointExchangePublicToken, exchangeRequest{PublicToken: publicToken}, func(status int, body []byte) error {
		if isSuccess(status) {
			return nil
		}
		var payload errorResponse
		_ = decodeObject(body, &payload)
		return &RequestError{Kind: ErrBackend, Endpoint: EndpointExchangePublicToken, Status: status, Message: errorMessage(payload.Error)}
	})
}

// call performs one request under the endpoint's breaker and records metrics.
func (c *Client) call(ctx context.Context, method, endpoint string, reqBody interface{}, handle func(status int, body []byte) error) error {
	start := time.Now()

	err := c.breakers[endpoint].Do(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, endpoint, reqBody, handle)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &RequestError{Kind: ErrTransport, Endpoint: endpoint, Err: err}
	}

	duration := time.Since(start)
	outcome := ClassifyError(err)
	c.metrics.RecordBackendCall(endpoint, outcome, duration)
	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
	)

	return err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, reqBody interface{}, handle func(status int, body []byte) error) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return &RequestError{Kind: ErrTransport, Endpoint: endpoint, Err: fmt.Errorf("encoding request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return &RequestError{Kind: ErrTransport, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Kind: ErrTransport, Endpoint: endpoint, Err: err}
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return &RequestError{Kind: ErrTransport, Endpoint: endpoint, Status: res.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	return handle(res.StatusCode, payload)
}

// decodeObject parses body as JSON. Valid JSON that is not an object leaves v
// untouched, so the caller sees missing fields rather than a parse failure.
func decodeObject(body []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return fmt.Errorf("decoding response: invalid JSON: %s", snippet(body))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorMessage renders the "error" member of a failure body.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return UnknownErrorMessage
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return UnknownErrorMessage
		}
		return s
	}
	return string(raw)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
