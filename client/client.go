// Package client is the Go consumer of the SecureBoard API. It speaks
// the cookie-session dialect: it bootstraps a CSRF token from
// /sanctum/csrf-cookie, mirrors the XSRF-TOKEN cookie into the
// X-XSRF-TOKEN header on every state-changing request, and retries
// exactly once on a 419 after refreshing the token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const (
	csrfCookieName = "XSRF-TOKEN"
	csrfHeaderName = "X-XSRF-TOKEN"
	csrfCookiePath = "/sanctum/csrf-cookie"

	// 419 is outside the registered status range; net/http has no
	// constant for it
	statusPageExpired = 419
)

type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry

	csrf singleflight.Group
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "secureboard-api",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send performs one HTTP exchange. Transport-level failures (DNS,
// refused connection, open breaker) return (nil, nil): the caller
// distinguishes "no response at all" from an HTTP error status, which
// always comes back as a non-nil response. Only request construction
// problems surface as an error.
func (c *Client) Send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	target := c.base.ResolveReference(ref)

	var payload *bytes.Buffer
	if body != nil {
		payload = &bytes.Buffer{}
		if err := json.NewEncoder(payload).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	var req *http.Request
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, target.String(), payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if stateChanging(method) {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.http.Do(req)
	})
	if err != nil {
		c.log.WithField("method", method).WithField("path", path).
			WithError(err).Debug("transport failure")
		return nil, nil
	}
	return result.(*http.Response), nil
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// csrfToken reads the XSRF cookie out of the jar. The server URL-escapes
// the cookie value, so it is unescaped before use.
func (c *Client) csrfToken() string {
	for _, cookie := range c.http.Jar.Cookies(c.base) {
		if cookie.Name == csrfCookieName {
			if token, err := url.QueryUnescape(cookie.Value); err == nil {
				return token
			}
			return cookie.Value
		}
	}
	return ""
}

// EnsureCSRF guarantees a CSRF cookie is present, fetching one if the
// jar is empty. Concurrent callers share a single in-flight fetch.
func (c *Client) EnsureCSRF(ctx context.Context) error {
	if c.csrfToken() != "" {
		return nil
	}
	return c.fetchCSRF(ctx)
}

// RefreshCSRF unconditionally refetches the token, used after a 419.
func (c *Client) RefreshCSRF(ctx context.Context) error {
	return c.fetchCSRF(ctx)
}

func (c *Client) fetchCSRF(ctx context.Context) error {
	_, err, _ := c.csrf.Do("csrf-cookie", func() (interface{}, error) {
		resp, err := c.Send(ctx, http.MethodGet, csrfCookiePath, nil)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, fmt.Errorf("csrf cookie endpoint unreachable")
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("csrf cookie endpoint returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
