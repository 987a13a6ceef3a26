package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksync_api/config"
	"stocksync_api/pkg/logger"
	"stocksync_api/pkg/transport"
)

func newTestStoreClient(t *testing.T, url string, opts Options) (*Client, *[]time.Duration) {
	t.Helper()
	log := logger.NewLogger(io.Discard, "[test]")

	g := NewGovernor(GovernorConfig{}, nil)
	g.setDelay(time.Millisecond)
	g.sleep = func(time.Duration) {}

	c := NewClient(
		config.StorefrontConfig{ShopURL: url, AccessToken: "token-1", LocationID: 5, ApiVersion: "2023-04"},
		transport.Config{Timeout: 2 * time.Second, RetryDelay: time.Millisecond},
		opts, g, log, log, log,
	)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestDo_RetryAfterHintHonoredAndLastResponseReturned(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, slept := newTestStoreClient(t, srv.URL, Options{InitialBackoff: 10 * time.Millisecond})

	resp, err := c.do(context.Background(), http.MethodGet, srv.URL, nil)

	require.NoError(t, err, "an exhausted retry budget hands back the last response")
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, int32(5), hits.Load())
	// the server's hint wins over the exponential default on every attempt
	require.Len(t, *slept, 4)
	for _, d := range *slept {
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestDo_ExponentialBackoffWithoutHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, slept := newTestStoreClient(t, srv.URL, Options{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
	})

	resp, err := c.do(context.Background(), http.MethodGet, srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond, // capped
	}, *slept)
}

func TestDo_NetworkFailurePropagatesAfterRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, slept := newTestStoreClient(t, srv.URL, Options{MaxRetries: 3, InitialBackoff: time.Millisecond})

	_, err := c.do(context.Background(), http.MethodGet, srv.URL, nil)

	require.Error(t, err)
	assert.Len(t, *slept, 2)
}

func TestDo_FeedsCallLimitHeaderToGovernor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(callLimitHeader, "39/40")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{})
	before := c.governor.Delay()

	_, err := c.do(context.Background(), http.MethodGet, srv.URL, nil)

	require.NoError(t, err)
	assert.Greater(t, c.governor.Delay(), before)
}

func TestFindBySKU_ResolvesProductAndInventoryItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "SKU-1", r.URL.Query().Get("sku"))
		io.WriteString(w, `{"products":[{"id":101,"variants":[{"inventory_item_id":202,"inventory_quantity":7}]}]}`)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{})
	ref, err := c.FindBySKU(context.Background(), "SKU-1")

	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int64(101), ref.ProductID)
	assert.Equal(t, int64(202), ref.InventoryItemID)
	assert.Equal(t, 7, ref.Quantity)
}

func TestFindBySKU_404IsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{})
	ref, err := c.FindBySKU(context.Background(), "SKU-MISSING")

	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestFindBySKU_EmptyProductListIsAMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"products":[]}`)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{})
	ref, err := c.FindBySKU(context.Background(), "SKU-1")

	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSetInventoryLevel_SendsLocationAndQuantity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload inventoryLevelPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, int64(5), payload.LocationID)
		assert.Equal(t, int64(202), payload.InventoryItemID)
		assert.Equal(t, 42, payload.Available)
		io.WriteString(w, `{"inventory_level":{}}`)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{})
	err := c.SetInventoryLevel(context.Background(), 202, 42, 101)

	require.NoError(t, err)
}

func TestSetInventoryLevel_422IsTerminalValidation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"errors":"inventory tracking is disabled"}`)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{})
	err := c.SetInventoryLevel(context.Background(), 202, 42, 101)

	require.ErrorIs(t, err, ErrValidationRejected)
	assert.Equal(t, int32(1), hits.Load(), "validation rejection is not retried")
}

func TestSetInventoryLevel_ExhaustedRateLimitSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestStoreClient(t, srv.URL, Options{MaxRetries: 2, InitialBackoff: time.Millisecond})
	err := c.SetInventoryLevel(context.Background(), 202, 42, 101)

	require.ErrorIs(t, err, ErrRateLimited)
}
