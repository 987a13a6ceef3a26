package distributor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stocksync_api/config"
	"stocksync_api/pkg/logger"
	"stocksync_api/pkg/transport"
)

// MaxTokenAttempts bounds token acquisition for a whole process run. The
// counter never resets, so a service that keeps rejecting tokens trips
// the breaker instead of hammering the authentication endpoint.
const MaxTokenAttempts = 20

var (
	// ErrTokenLimitExceeded is fatal for the run: once the attempt
	// ceiling is hit no further network call is made.
	ErrTokenLimitExceeded = errors.New("authentication token attempt limit exceeded")

	// ErrAuthenticationFailed covers a failed token acquisition: network
	// failure, non-200 status, malformed XML, or an empty token field.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Client talks to the distributor's SOAP web ordering service. It owns
// the auth token for its lifetime: absent at construction, acquired on
// the first authenticated call or on a detected expiry, replaced (never
// mutated) on renewal.
type Client struct {
	baseURL  string
	username string
	password string

	authToken     string
	tokenAttempts int

	http     *transport.Client
	log      logger.Logger
	crashLog logger.Logger
}

func NewClient(cfg config.DistributorConfig, rt transport.Config, log, crashLog logger.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     transport.NewClient(rt, log),
		log:      log,
		crashLog: crashLog,
	}
}

// TokenAttempts reports how many acquisitions have been tried so far.
func (c *Client) TokenAttempts() int {
	return c.tokenAttempts
}

// Authenticate acquires a fresh token. At the attempt ceiling it fails
// fast with ErrTokenLimitExceeded without touching the network.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if c.tokenAttempts >= MaxTokenAttempts {
		c.crashLog.Log("token generation limit reached (%d attempts)", c.tokenAttempts)
		return "", ErrTokenLimitExceeded
	}
	c.tokenAttempts++
	c.log.Log("requesting authentication token (attempt %d/%d)", c.tokenAttempts, MaxTokenAttempts)

	payload := fmt.Sprintf(authEnvelope, xmlEscape(c.username), xmlEscape(c.password))
	body, err := c.post(ctx, payload)
	if err != nil {
		c.crashLog.Log("authentication request failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	parsed, err := parseEnvelope(body, "GetAuthenticationTokenResult")
	if err != nil {
		c.crashLog.Log("authentication response unparseable: %v", err)
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if !parsed.HasResult || strings.TrimSpace(parsed.Result) == "" {
		c.crashLog.Log("authentication token not found in response")
		return "", fmt.Errorf("%w: token missing from response", ErrAuthenticationFailed)
	}

	c.authToken = strings.TrimSpace(parsed.Result)
	c.log.Log("authentication token retrieved")
	return c.authToken, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.authToken != "" {
		return nil
	}
	_, err := c.Authenticate(ctx)
	return err
}

// post sends one SOAP payload through the retry wrapper and returns the
// raw response body. Non-200 statuses are errors at this level, the
// in-band auth errors arrive inside 200 responses.
func (c *Client) post(ctx context.Context, payload string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// authenticatedCall runs one SOAP operation under the renewal protocol:
// if the parsed response carries the expiry marker, re-authenticate once
// and retry the same call exactly once. A second expiry surfaces as a
// failure rather than another round, so a misbehaving service cannot
// trap the client in a loop.
func (c *Client) authenticatedCall(ctx context.Context, op string, build func(token string) string, resultName string) (*soapResult, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	parsed, err := c.callOnce(ctx, op, build, resultName)
	if err != nil {
		return nil, err
	}
	if !parsed.authExpired() {
		return parsed, nil
	}

	c.crashLog.Log("%s: authentication token expired, refreshing and retrying", op)
	if _, err := c.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsed, err = c.callOnce(ctx, op, build, resultName)
	if err != nil {
		return nil, err
	}
	if parsed.authExpired() {
		c.crashLog.Log("%s: token rejected immediately after refresh", op)
		return nil, fmt.Errorf("%s: token rejected after refresh: %w", op, ErrAuthenticationFailed)
	}
	return parsed, nil
}

func (c *Client) callOnce(ctx context.Context, op string, build func(token string) string, resultName string) (*soapResult, error) {
	body, err := c.post(ctx, build(c.authToken))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsed, err := parseEnvelope(body, resultName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return parsed, nil
}

// ProductCodes lists every product code the distributor carries. A
// malformed or empty payload is logged and yields an empty list, the
// batch run carries on.
func (c *Client) ProductCodes(ctx context.Context) ([]string, error) {
	c.log.Log("retrieving product codes")

	parsed, err := c.authenticatedCall(ctx, "GetProductCodes", func(token string) string {
		return fmt.Sprintf(productCodesEnvelope, token)
	}, "GetProductCodesResult")
	if err != nil {
		return nil, err
	}
	if !parsed.HasResult || strings.TrimSpace(parsed.Result) == "" {
		c.log.Log("no product codes found")
		return nil, nil
	}

	codes, err := parseProductCodes(parsed.Result)
	if err != nil {
		c.crashLog.Log("GetProductCodes: %v", err)
		return nil, nil
	}
	c.log.Log("retrieved %d product codes", len(codes))
	return codes, nil
}

// ProductStock fetches the stock level for one product code. ok is false
// when the service answered but the stock figure is missing or not a
// number; that is a data error to log, not a reason to stop the run.
func (c *Client) ProductStock(ctx context.Context, code string) (stock int, ok bool, err error) {
	c.log.Log("retrieving stock for product code %s", code)

	parsed, err := c.authenticatedCall(ctx, "GetProductStock", func(token string) string {
		return fmt.Sprintf(productStockEnvelope, token, xmlEscape(code))
	}, "GetProductStockResult")
	if err != nil {
		return 0, false, err
	}
	if !parsed.HasResult || strings.TrimSpace(parsed.Result) == "" {
		c.crashLog.Log("GetProductStock: no result element for product %s", code)
		return 0, false, nil
	}

	level, err := parseStock(parsed.Result)
	if err != nil {
		c.crashLog.Log("GetProductStock: product %s: %v", code, err)
		return 0, false, nil
	}
	c.log.Log("stock level for product %s: %d", code, level)
	return level, true, nil
}

// ProductData fetches the price and barcode for one product code. Both
// come back empty when the payload is malformed or incomplete.
func (c *Client) ProductData(ctx context.Context, code string) (price, barcode string, err error) {
	c.log.Log("retrieving price and barcode for product code %s", code)

	parsed, err := c.authenticatedCall(ctx, "GetProductData", func(token string) string {
		return fmt.Sprintf(productDataEnvelope, token, xmlEscape(code))
	}, "GetProductDataResult")
	if err != nil {
		return "", "", err
	}
	if !parsed.HasResult || strings.TrimSpace(parsed.Result) == "" {
		c.crashLog.Log("GetProductData: no result element for product %s", code)
		return "", "", nil
	}

	price, barcode, perr := parseProductData(parsed.Result)
	if perr != nil {
		c.crashLog.Log("GetProductData: product %s: %v", code, perr)
		return "", "", nil
	}
	c.log.Log("product %s: price %s, barcode %s", code, price, barcode)
	return price, barcode, nil
}
