package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"stocksync_api/pkg/logger"
)

// Doer is the subset of http.Client used by the retry wrapper. Tests swap
// in scripted fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Timeout     time.Duration // per-call timeout
	MaxAttempts int           // attempts for connect-timeout failures
	RetryDelay  time.Duration // fixed delay between attempts
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
}

// Client issues one outbound HTTP call with a fixed timeout. A timeout is
// retried up to MaxAttempts with a fixed delay; any other transport
// failure (DNS, connection reset) propagates immediately, since a broken
// path will not heal in a few seconds the way a slow accept can. Status
// codes are never interpreted here, that is the calling client's job.
type Client struct {
	base  Doer
	cfg   Config
	log   logger.Logger
	sleep func(time.Duration)
}

func NewClient(cfg Config, log logger.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		base:  &http.Client{Timeout: cfg.Timeout},
		cfg:   cfg,
		log:   log,
		sleep: time.Sleep,
	}
}

// NewClientWithDoer is used by tests to script transport behavior.
func NewClientWithDoer(base Doer, cfg Config, log logger.Logger) *Client {
	cfg.applyDefaults()
	return &Client{base: base, cfg: cfg, log: log, sleep: time.Sleep}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(c.cfg.RetryDelay)
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewinding request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.base.Do(req)
		if err == nil {
			return resp, nil
		}
		if !isTimeout(err) {
			return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
		}

		lastErr = err
		if c.log != nil {
			c.log.Log("timeout on %s %s (attempt %d/%d): %v",
				req.Method, req.URL.Host, attempt, c.cfg.MaxAttempts, err)
		}
	}
	return nil, fmt.Errorf("request to %s timed out after %d attempts: %w",
		req.URL.Host, c.cfg.MaxAttempts, lastErr)
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
