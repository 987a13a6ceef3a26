package storefront

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stocksync_api/pkg/logger"
)

const (
	highWaterRatio = 0.8
	lowWaterRatio  = 0.5

	minCallDelay     = 500 * time.Millisecond
	midCallDelayCap  = 1 * time.Second
	maxCallDelay     = 2 * time.Second
	defaultCallDelay = 500 * time.Millisecond
)

type GovernorConfig struct {
	Window   time.Duration // rolling quota window, counters reset after it elapses
	Cooldown time.Duration // forced pause when the quota is exhausted
}

func (c *GovernorConfig) applyDefaults() {
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Second
	}
}

// Governor adapts the inter-call delay from the platform's call-limit
// header so the client backs off before the quota is breached instead of
// after. The delay feeds a rate.Limiter that every outbound call waits
// on; adapting the delay retunes the limiter.
type Governor struct {
	cfg GovernorConfig

	used        int
	limit       int
	windowStart time.Time
	delay       time.Duration
	limiter     *rate.Limiter

	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

func NewGovernor(cfg GovernorConfig, log logger.Logger) *Governor {
	cfg.applyDefaults()
	return &Governor{
		cfg:         cfg,
		windowStart: time.Now(),
		delay:       defaultCallDelay,
		limiter:     rate.NewLimiter(rate.Every(defaultCallDelay), 1),
		log:         log,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Wait blocks until the next call is allowed under the current delay.
func (g *Governor) Wait(ctx context.Context) error {
	g.maybeResetWindow()
	return g.limiter.Wait(ctx)
}

// Delay reports the current inter-call delay.
func (g *Governor) Delay() time.Duration {
	return g.delay
}

// Observe feeds one call-limit header value ("32/40") back into the
// governor. Absent or malformed headers leave the state untouched.
func (g *Governor) Observe(header string) {
	if header == "" {
		return
	}
	usedStr, limitStr, found := strings.Cut(header, "/")
	if !found {
		return
	}
	used, err1 := strconv.Atoi(strings.TrimSpace(usedStr))
	limit, err2 := strconv.Atoi(strings.TrimSpace(limitStr))
	if err1 != nil || err2 != nil || limit <= 0 {
		return
	}

	g.used = used
	g.limit = limit

	if used >= limit {
		if g.log != nil {
			g.log.Log("call quota exhausted (%d/%d), cooling down", used, limit)
		}
		g.resetWindow()
		g.sleep(g.cfg.Cooldown)
		return
	}

	ratio := float64(used) / float64(limit)
	switch {
	case ratio > highWaterRatio:
		g.setDelay(capDelay(g.delay*3/2, maxCallDelay))
	case ratio >= lowWaterRatio:
		g.setDelay(capDelay(g.delay*6/5, midCallDelayCap))
	default:
		g.setDelay(floorDelay(g.delay*4/5, minCallDelay))
	}
}

func (g *Governor) setDelay(d time.Duration) {
	if d == g.delay {
		return
	}
	g.delay = d
	g.limiter.SetLimit(rate.Every(d))
}

// maybeResetWindow models the sliding quota: once the window has fully
// elapsed the server-side counter is stale and ours is cleared with it.
func (g *Governor) maybeResetWindow() {
	if g.now().Sub(g.windowStart) > g.cfg.Window {
		g.resetWindow()
	}
}

func (g *Governor) resetWindow() {
	g.used = 0
	g.windowStart = g.now()
}

func capDelay(d, upper time.Duration) time.Duration {
	if d > upper {
		return upper
	}
	return d
}

func floorDelay(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}
