/**
 * @description
 * HTTP client for the One-Stop-Payment (OSP) gateway. Bills are queried with a GET
 * and the commit/confirm/reverse steps are form-encoded POSTs. Every call carries
 * the partner code and the Authorization header, and runs behind a circuit breaker
 * so a dead gateway fails fast instead of tying up request goroutines.
 *
 * @dependencies
 * - github.com/sony/gobreaker: circuit breaker around transport failures.
 * - github.com/shopspring/decimal: invoice amounts.
 */
package ospclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

const (
	opLookup  = "lookup"
	opCommit  = "commit"
	opConfirm = "confirm"
	opReverse = "reverse"

	defaultTimeout = 30 * time.Second
	maxLoggedBody  = 2048
)

var sensitiveParams = map[string]struct{}{"pin": {}}

// Client is a client for the OSP gateway API.
type Client struct {
	BaseURL    string
	Auth       string
	Partner    string
	HTTPClient *http.Client

	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a new OSP client. A non-positive timeout falls back to 30s.
func NewClient(baseURL, auth, partner string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "osp_client")

	settings := gobreaker.Settings{
		Name:        "osp-gateway",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Business rejections mean the gateway is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Auth:       auth,
		Partner:    partner,
		HTTPClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// Lookup queries an invoice by reference number.
func (c *Client) Lookup(ctx context.Context, referenceNumber string) (*InvoiceInfo, error) {
	params := url.Values{}
	params.Set("reference_number", referenceNumber)

	env, err := c.call(ctx, opLookup, http.MethodGet, "query-payment", params)
	if err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if raw := strings.TrimSpace(string(env.Amount)); raw != "" {
		amount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lookup returned invalid amount %q", ErrGatewayUnreachable, raw)
		}
	}

	return &InvoiceInfo{
		ResponseCode:    int(env.ResponseCode),
		ResponseMsg:     env.message(),
		ReferenceNumber: firstNonEmpty(string(env.ReferenceNumber), referenceNumber),
		CustomerName:    string(env.CustomerName),
		Amount:          amount,
		Currency:        strings.ToUpper(strings.TrimSpace(string(env.Currency))),
		SessionID:       string(env.SessionID),
	}, nil
}

// Commit locks the invoice for payment under our transaction id.
func (c *Client) Commit(ctx context.Context, referenceNumber, sessionID, transactionID string) (*CommitResult, error) {
	params := url.Values{}
	params.Set("reference_number", referenceNumber)
	params.Set("session_id", sessionID)
	params.Set("transaction_id", transactionID)

	env, err := c.call(ctx, opCommit, http.MethodPost, "commit-payment", params)
	if err != nil {
		return nil, err
	}
	return &CommitResult{
		ResponseCode:           int(env.ResponseCode),
		ResponseMsg:            env.message(),
		TransactionID:          string(env.TransactionID),
		AcknowledgementID:      string(env.AcknowledgementID),
		CDCTransactionDatetime: string(env.CDCTransactionDatetime),
	}, nil
}

// Confirm finalizes a committed payment.
func (c *Client) Confirm(ctx context.Context, referenceNumber, transactionID, acknowledgementID string) (*ConfirmResult, error) {
	params := url.Values{}
	params.Set("reference_number", referenceNumber)
	params.Set("transaction_id", transactionID)
	params.Set("acknowledgement_id", acknowledgementID)

	env, err := c.call(ctx, opConfirm, http.MethodPost, "confirm-payment", params)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		ResponseCode:           int(env.ResponseCode),
		ResponseMsg:            env.message(),
		TransactionID:          string(env.TransactionID),
		AcknowledgementID:      string(env.AcknowledgementID),
		CDCTransactionDatetime: string(env.CDCTransactionDatetime),
	}, nil
}

// Reverse undoes a committed or confirmed payment.
func (c *Client) Reverse(ctx context.Context, referenceNumber, transactionID, reversalTransactionID string) (*ReverseResult, error) {
	params := url.Values{}
	params.Set("reference_number", referenceNumber)
	params.Set("transaction_id", transactionID)
	params.Set("reversal_transaction_id", reversalTransactionID)

	env, err := c.call(ctx, opReverse, http.MethodPost, "reverse-payment", params)
	if err != nil {
		return nil, err
	}
	return &ReverseResult{
		ResponseCode:              int(env.ResponseCode),
		ResponseMsg:               env.message(),
		ReversalTransactionID:     firstNonEmpty(string(env.ReversalTransactionID), reversalTransactionID),
		ReversalAcknowledgementID: string(env.ReversalAcknowledgementID),
	}, nil
}

// call runs one gateway round trip through the breaker. A nil error means the
// gateway answered with response code 200.
func (c *Client) call(ctx context.Context, op, method, path string, params url.Values) (*envelope, error) {
	params.Set("partner", c.Partner)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, op, method, path, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.WarnContext(ctx, "osp call short-circuited", "op", op, "state", c.breaker.State().String())
			return nil, fmt.Errorf("%w: osp %s: %v", ErrGatewayUnreachable, op, err)
		}
		return nil, err
	}
	return result.(*envelope), nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, params url.Values) (*envelope, error) {
	endpoint := c.BaseURL + "/" + path

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: build %s request: %v", ErrGatewayUnreachable, op, err)
	}
	req.Header.Set("Authorization", c.Auth)
	req.Header.Set("Accept", "application/json")

	c.logger.InfoContext(ctx, "osp request", "op", op, "method", method, "url", endpoint, "params", maskParams(params))

	started := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "osp transport failure", "op", op, "url", endpoint, "duration_ms", time.Since(started).Milliseconds(), "err", err)
		return nil, fmt.Errorf("%w: osp %s: %v", ErrGatewayUnreachable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read osp %s response: %v", ErrGatewayUnreachable, op, err)
	}

	level := slog.LevelInfo
	if resp.StatusCode != http.StatusOK {
		level = slog.LevelError
	}
	c.logger.Log(ctx, level, "osp response",
		"op", op,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
		"body", truncate(string(body), maxLoggedBody),
	)

	var env envelope
	if decodeErr := json.Unmarshal(body, &env); decodeErr != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &GatewayError{Op: op, Code: resp.StatusCode, Message: strings.TrimSpace(truncate(string(body), 256))}
		}
		return nil, fmt.Errorf("%w: decode osp %s response: %v", ErrGatewayUnreachable, op, decodeErr)
	}

	code := int(env.ResponseCode)
	if code == 0 {
		code = resp.StatusCode
		env.ResponseCode = flexInt(code)
	}
	if code != StatusOK {
		return nil, &GatewayError{Op: op, Code: code, Message: env.message()}
	}
	return &env, nil
}

func maskParams(params url.Values) map[string]string {
	masked := make(map[string]string, len(params))
	for key := range params {
		if _, secret := sensitiveParams[strings.ToLower(key)]; secret {
			masked[key] = "***masked***"
			continue
		}
		masked[key] = params.Get(key)
	}
	return masked
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
