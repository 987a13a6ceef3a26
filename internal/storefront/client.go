package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stocksync_api/config"
	"stocksync_api/pkg/logger"
	"stocksync_api/pkg/transport"
)

const callLimitHeader = "X-Shopify-Shop-Api-Call-Limit"

var (
	// ErrValidationRejected marks an update the platform refused outright,
	// e.g. inventory tracking disabled on the variant. Terminal for that
	// item, never retried.
	ErrValidationRejected = errors.New("inventory update rejected")

	// ErrRateLimited surfaces only when the rate-limit retry budget is
	// exhausted and the last response was still a 429.
	ErrRateLimited = errors.New("rate limited")
)

type Options struct {
	MaxRetries     int           // attempts for rate-limited calls
	InitialBackoff time.Duration // exponential backoff start when no Retry-After hint
	MaxBackoff     time.Duration // exponential backoff ceiling
}

func (o *Options) applyDefaults() {
	if o.MaxRetries < 1 {
		o.MaxRetries = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 16 * time.Second
	}
}

// ProductRef identifies the storefront product a distributor barcode
// resolved to, with everything the inventory update needs.
type ProductRef struct {
	ProductID       int64
	InventoryItemID int64
	Quantity        int
}

// Client talks to the storefront's REST admin API. Every call routes
// through the transport retry wrapper and the rate governor.
type Client struct {
	baseURL     string
	accessToken string
	locationID  int64
	apiVersion  string

	opts     Options
	http     *transport.Client
	governor *Governor

	log       logger.Logger
	crashLog  logger.Logger
	updateLog logger.Logger
	sleep     func(time.Duration)
}

func NewClient(cfg config.StorefrontConfig, rt transport.Config, opts Options, gov *Governor, log, crashLog, updateLog logger.Logger) *Client {
	opts.applyDefaults()
	return &Client{
		baseURL:     apiBase(cfg.ShopURL),
		accessToken: cfg.AccessToken,
		locationID:  cfg.LocationID,
		apiVersion:  cfg.ApiVersion,
		opts:        opts,
		http:        transport.NewClient(rt, log),
		governor:    gov,
		log:         log,
		crashLog:    crashLog,
		updateLog:   updateLog,
		sleep:       time.Sleep,
	}
}

type apiResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// do issues one REST call under the rate policy: wait out the governor,
// send, feed the call-limit header back, and on 429 retry with the
// server's Retry-After hint when present or exponential backoff when
// not. After the retry budget the last 429 response is returned to the
// caller rather than an error; network failures propagate after the
// same budget.
func (c *Client) do(ctx context.Context, method, callURL string, payload []byte) (*apiResponse, error) {
	backoff := c.opts.InitialBackoff
	var last *apiResponse

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if err := c.governor.Wait(ctx); err != nil {
			return nil, err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, callURL, body)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == c.opts.MaxRetries {
				return nil, err
			}
			c.crashLog.Log("%s %s failed (attempt %d/%d): %v", method, callURL, attempt, c.opts.MaxRetries, err)
			c.sleep(backoff)
			backoff = nextBackoff(backoff, c.opts.MaxBackoff)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		c.governor.Observe(resp.Header.Get(callLimitHeader))

		ar := &apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: respBody}
		if ar.Status != http.StatusTooManyRequests {
			return ar, nil
		}

		last = ar
		if attempt == c.opts.MaxRetries {
			break
		}

		delay := backoff
		if hint, ok := retryAfter(resp.Header); ok {
			delay = hint
		} else {
			backoff = nextBackoff(backoff, c.opts.MaxBackoff)
		}
		c.log.Log("rate limited on attempt %d/%d, retrying in %s", attempt, c.opts.MaxRetries, delay)
		c.sleep(delay)
	}
	return last, nil
}

// apiBase accepts either a bare shop host or a full URL with a scheme.
func apiBase(shop string) string {
	if strings.Contains(shop, "://") {
		return strings.TrimSuffix(shop, "/")
	}
	return "https://" + shop
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

// retryAfter reads the server's Retry-After hint in seconds. The
// platform sends fractional values, so it is parsed as a float.
func retryAfter(h http.Header) (time.Duration, bool) {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

type productsResponse struct {
	Products []struct {
		ID       int64 `json:"id"`
		Variants []struct {
			InventoryItemID   int64 `json:"inventory_item_id"`
			InventoryQuantity int   `json:"inventory_quantity"`
		} `json:"variants"`
	} `json:"products"`
}

// FindBySKU resolves a storefront SKU to its product and inventory item
// ids. A missing product is a normal outcome and returns nil without an
// error.
func (c *Client) FindBySKU(ctx context.Context, sku string) (*ProductRef, error) {
	callURL := fmt.Sprintf("%s/admin/api/%s/products.json?sku=%s",
		c.baseURL, c.apiVersion, url.QueryEscape(sku))

	resp, err := c.do(ctx, http.MethodGet, callURL, nil)
	if err != nil {
		return nil, fmt.Errorf("looking up sku %s: %w", sku, err)
	}

	switch resp.Status {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		c.log.Log("sku %s not found", sku)
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("looking up sku %s: %w", sku, ErrRateLimited)
	default:
		return nil, fmt.Errorf("looking up sku %s: unexpected status %d", sku, resp.Status)
	}

	var products productsResponse
	if err := json.Unmarshal(resp.Body, &products); err != nil {
		return nil, fmt.Errorf("decoding products for sku %s: %w", sku, err)
	}
	if len(products.Products) == 0 || len(products.Products[0].Variants) == 0 {
		c.log.Log("sku %s not found", sku)
		return nil, nil
	}

	p := products.Products[0]
	return &ProductRef{
		ProductID:       p.ID,
		InventoryItemID: p.Variants[0].InventoryItemID,
		Quantity:        p.Variants[0].InventoryQuantity,
	}, nil
}

type inventoryLevelPayload struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

// SetInventoryLevel pushes a new available quantity for one inventory
// item. A 422 means tracking is disabled on the variant and is terminal
// for that item; an exhausted rate-limit budget surfaces as
// ErrRateLimited for the orchestrator's single long-delay retry.
func (c *Client) SetInventoryLevel(ctx context.Context, inventoryItemID int64, quantity int, productID int64) error {
	callURL := fmt.Sprintf("%s/admin/api/%s/inventory_levels/set.json", c.baseURL, c.apiVersion)

	payload, err := json.Marshal(inventoryLevelPayload{
		LocationID:      c.locationID,
		InventoryItemID: inventoryItemID,
		Available:       quantity,
	})
	if err != nil {
		return fmt.Errorf("encoding inventory payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, callURL, payload)
	if err != nil {
		return fmt.Errorf("updating inventory for product %d: %w", productID, err)
	}

	switch resp.Status {
	case http.StatusOK:
		c.updateLog.Log("inventory level updated for product %d: %d available", productID, quantity)
		return nil
	case http.StatusUnprocessableEntity:
		c.crashLog.Log("inventory update rejected for product %d: %s", productID, resp.Body)
		return fmt.Errorf("updating inventory for product %d: %w", productID, ErrValidationRejected)
	case http.StatusTooManyRequests:
		c.crashLog.Log("inventory update for product %d still rate limited after %d attempts", productID, c.opts.MaxRetries)
		return fmt.Errorf("updating inventory for product %d: %w", productID, ErrRateLimited)
	default:
		c.crashLog.Log("inventory update failed for product %d: status %d: %s", productID, resp.Status, resp.Body)
		return fmt.Errorf("updating inventory for product %d: unexpected status %d", productID, resp.Status)
	}
}
