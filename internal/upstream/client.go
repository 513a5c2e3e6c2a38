// Package upstream is the HTTP client shared by the command handlers and the
// URL title fetcher. Each named service gets its own circuit breaker.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yourusername/kukisti/internal/circuitbreaker"
	"github.com/yourusername/kukisti/internal/output"
)

// UserAgent is sent with every request
const UserAgent = "Mozilla/5.0 (compatible; KukistiBot/1.0)"

// MaxJSONBody bounds how much of a JSON response is read
const MaxJSONBody = 1 << 20

// StatusError is returned for non-2xx responses
type StatusError struct {
	Service string
	Code    int
	Status  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %s", e.Service, e.Status)
}

// Client performs requests with a per-request timeout and per-service
// circuit breakers
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     output.Logger

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// New creates a client. timeout bounds each request including the body read.
func New(timeout time.Duration, logger output.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		timeout:  timeout,
		logger:   logger,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// Breaker returns the circuit breaker for a service, creating it on first use
func (c *Client) Breaker(service string) *circuitbreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[service]
	if !ok {
		cb = circuitbreaker.New(circuitbreaker.Config{
			Name:      service,
			Threshold: 5,
			Timeout:   60 * time.Second,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				c.logger.Warning("Upstream %s circuit %s -> %s", name, from, to)
			},
		})
		c.breakers[service] = cb
	}
	return cb
}

// GetJSON fetches rawURL with query parameters and decodes the JSON body into
// out, through the breaker of service
func (c *Client) GetJSON(ctx context.Context, service, rawURL string, query url.Values, out any) error {
	if len(query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("%s: bad url: %w", service, err)
		}
		u.RawQuery = query.Encode()
		rawURL = u.String()
	}

	// Client errors such as an unknown symbol are returned but do not count
	// against the breaker
	var clientErr error
	err := c.Breaker(service).Call(ctx, func(ctx context.Context) error {
		err := c.Fetch(ctx, service, rawURL, "application/json", func(resp *http.Response) error {
			if err := json.NewDecoder(io.LimitReader(resp.Body, MaxJSONBody)).Decode(out); err != nil {
				return fmt.Errorf("%s: decode response: %w", service, err)
			}
			return nil
		})
		if isClientError(err) {
			clientErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	return clientErr
}

// isClientError reports a 4xx response other than 429
func isClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}

// Fetch performs a GET without a breaker and hands a 2xx response to read.
// The body is closed after read returns.
func (c *Client) Fetch(ctx context.Context, service, rawURL, accept string, read func(*http.Response) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", service, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Service: service, Code: resp.StatusCode, Status: resp.Status}
	}
	return read(resp)
}
