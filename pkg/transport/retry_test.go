package transport

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type scripted struct {
	calls int
	seq   []scriptedResult
}

type scriptedResult struct {
	resp *http.Response
	err  error
}

func (s *scripted) Do(req *http.Request) (*http.Response, error) {
	if s.calls >= len(s.seq) {
		return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
	}
	r := s.seq[s.calls]
	s.calls++
	return r.resp, r.err
}

func testClient(t *testing.T, base Doer) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClientWithDoer(base, Config{RetryDelay: time.Millisecond}, nil)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	base := &scripted{seq: []scriptedResult{
		{resp: &http.Response{StatusCode: 200, Body: http.NoBody}},
	}}
	c, slept := testClient(t, base)

	req, _ := http.NewRequest(http.MethodPost, "http://distributor.example/soap", nil)
	resp, err := c.Do(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, base.calls)
	assert.Empty(t, *slept)
}

func TestDo_TimeoutRetriedThenSucceeds(t *testing.T) {
	base := &scripted{seq: []scriptedResult{
		{err: timeoutError{}},
		{resp: &http.Response{StatusCode: 200, Body: http.NoBody}},
	}}
	c, slept := testClient(t, base)

	req, _ := http.NewRequest(http.MethodPost, "http://distributor.example/soap", nil)
	resp, err := c.Do(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, base.calls)
	assert.Len(t, *slept, 1)
}

func TestDo_TimeoutExhaustsAttemptsAndPropagates(t *testing.T) {
	base := &scripted{seq: []scriptedResult{
		{err: timeoutError{}},
		{err: timeoutError{}},
		{err: timeoutError{}},
	}}
	c, slept := testClient(t, base)

	req, _ := http.NewRequest(http.MethodPost, "http://distributor.example/soap", nil)
	_, err := c.Do(req)

	require.Error(t, err)
	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout())
	assert.Equal(t, 3, base.calls)
	assert.Len(t, *slept, 2)
}

func TestDo_NonTimeoutPropagatesImmediately(t *testing.T) {
	base := &scripted{seq: []scriptedResult{
		{err: errors.New("connection reset by peer")},
	}}
	c, slept := testClient(t, base)

	req, _ := http.NewRequest(http.MethodPost, "http://distributor.example/soap", nil)
	_, err := c.Do(req)

	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
	assert.Empty(t, *slept)
}

func TestDo_StatusCodesNotInterpreted(t *testing.T) {
	// 5xx is the caller's problem, the wrapper hands it back untouched.
	base := &scripted{seq: []scriptedResult{
		{resp: &http.Response{StatusCode: 503, Body: http.NoBody}},
	}}
	c, _ := testClient(t, base)

	req, _ := http.NewRequest(http.MethodGet, "http://storefront.example/admin", nil)
	resp, err := c.Do(req)

	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, 1, base.calls)
}
