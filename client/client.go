// Package client is a Go client for the elimu REST API.
//
// GET responses are cached in memory, failed GETs are retried with exponential backoff,
// and the course and category listings fall back to static data when the API is unreachable.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetryCount = 3
	DefaultRetryWait  = time.Second
	DefaultCacheTTL   = 5 * time.Minute
)

// Client is safe for concurrent use.
type Client struct {
	rc             *resty.Client
	cache          *responseCache
	logger         core.Logger
	retryWait      time.Duration
	useFallback    bool
	onUnauthorized func()

	mutex sync.RWMutex
	token string
}

type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.rc.SetTimeout(timeout) }
}

// WithRetries sets the number of retries and the base wait: the nth retry waits base * 2^(n-1).
func WithRetries(count int, base time.Duration) Option {
	return func(c *Client) {
		c.rc.SetRetryCount(count)
		c.retryWait = base
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache.ttl = ttl }
}

// WithoutFallback makes failed listings return their error instead of static data.
func WithoutFallback() Option {
	return func(c *Client) { c.useFallback = false }
}

// OnUnauthorized registers a callback fired after a 401 response cleared the session.
func OnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithLogger receives the fallback warnings and resty's own logs.
func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = logger
		c.rc.SetLogger(restyLogger{logger})
	}
}

// New returns a client of the API served at baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		rc:          resty.New(),
		cache:       newResponseCache(DefaultCacheTTL),
		logger:      nopLogger{},
		retryWait:   DefaultRetryWait,
		useFallback: true,
	}
	c.rc.
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(DefaultRetryCount).
		AddRetryCondition(shouldRetry).
		SetRetryAfter(c.backoff)

	for _, opt := range opts {
		opt(c)
	}
	c.rc.
		SetRetryWaitTime(c.retryWait).
		SetRetryMaxWaitTime(c.retryWait << maxBackoffShift)
	return c
}

// Token returns the current bearer token, empty after a 401.
func (c *Client) Token() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.token
}

// SetToken changes the session; cached responses belong to the previous one and are dropped.
func (c *Client) SetToken(token string) {
	c.mutex.Lock()
	c.token = token
	c.mutex.Unlock()
	c.cache.clear()
}

func (c *Client) ClearCache() {
	c.cache.clear()
}

const maxBackoffShift = 10

func (c *Client) backoff(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	shift := resp.Request.Attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return c.retryWait << shift, nil
}

// shouldRetry retries GETs that failed in transit or got a 5xx or 429.
func shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// request runs one API call. out, when non nil, receives the decoded JSON response.
func (c *Client) request(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var key string
	if method == http.MethodGet {
		key = cacheKey(method, endpoint, body)
		if data, ok := c.cache.get(key); ok {
			return c.decode(data, out)
		}
	}

	req := c.rc.R().
		SetContext(ctx).
		SetError(&apiError{})
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return errors.Wrapf(err, "requesting %s %s", method, endpoint)
	}
	if resp.IsError() {
		return c.handleError(resp)
	}

	if method == http.MethodGet {
		c.cache.set(key, resp.Body())
	} else {
		// cached listings may now be stale
		c.cache.clear()
	}
	return c.decode(resp.Body(), out)
}

func (c *Client) decode(data []byte, out interface{}) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrap(c.rc.JSONUnmarshal(data, out), "decoding response")
}

func (c *Client) handleError(resp *resty.Response) error {
	apiErr := &Error{Status: resp.StatusCode()}
	if e, ok := resp.Error().(*apiError); ok && e != nil {
		apiErr.Message = e.Message
		apiErr.Fields = e.Errors
	}
	if apiErr.Status == http.StatusUnauthorized {
		c.SetToken("")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = StatusMessage(apiErr.Status)
	}
	return apiErr
}

type restyLogger struct {
	logger core.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.logger.Debug(fmt.Sprintf(format, v...)) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
