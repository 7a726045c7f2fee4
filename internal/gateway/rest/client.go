// Package rest talks to a json-server style HTTP backend:
//
//	GET    /api/transactions?userId=<id>
//	POST   /api/transactions
//	DELETE /api/transactions/<id>
//	GET    /api/users?username=<name>
//	POST   /api/users
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
	applog "moneytrack/internal/log"
)

const (
	transactionsPath = "/api/transactions"
	usersPath        = "/api/users"
	maxErrorBody     = 512
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Ensure interface conformance
var _ gateway.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// New creates a client for the backend rooted at baseURL. Requests are
// logged through logger and bounded by timeout.
func New(baseURL string, timeout time.Duration, logger *applog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		baseURL: u,
		http:    newHTTPClient(timeout, logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClient creates a pooled HTTP client with the request logging transport.
func newHTTPClient(timeout time.Duration, logger *applog.Logger) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	var rt http.RoundTripper = transport
	if logger != nil {
		rt = &applog.Transport{Base: transport, Logger: logger.WithComponent(applog.ComponentGateway)}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

func (c *Client) FetchAll(ctx context.Context, owner core.UserID) ([]core.Transaction, error) {
	var wire []gateway.WireTransaction
	q := url.Values{"userId": {string(owner)}}
	if err := c.do(ctx, "fetch", http.MethodGet, transactionsPath, q, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(wire))
	for _, w := range wire {
		t, err := w.Transaction()
		if err != nil {
			return nil, gateway.Errorf("fetch", err, "malformed transaction in response: %v", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	var created gateway.WireTransaction
	if err := c.do(ctx, "create", http.MethodPost, transactionsPath, nil, gateway.ToWire(d), &created); err != nil {
		return core.Transaction{}, err
	}
	t, err := created.Transaction()
	if err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "malformed transaction in response: %v", err)
	}
	return t, nil
}

func (c *Client) Remove(ctx context.Context, id core.RecordID) error {
	return c.do(ctx, "remove", http.MethodDelete, transactionsPath+"/"+url.PathEscape(string(id)), nil, nil, nil)
}

func (c *Client) FindByUsername(ctx context.Context, username string) (gateway.Candidate, bool, error) {
	var users []gateway.WireUser
	q := url.Values{"username": {username}}
	if err := c.do(ctx, "lookup", http.MethodGet, usersPath, q, nil, &users); err != nil {
		return gateway.Candidate{}, false, err
	}
	// json-server filters by exact match, but be strict about it anyway.
	for _, u := range users {
		if u.Username == username {
			return u.Candidate(), true, nil
		}
	}
	return gateway.Candidate{}, false, nil
}

func (c *Client) CreateIdentity(ctx context.Context, username, secret string) (core.Identity, error) {
	var created gateway.WireUser
	body := gateway.WireUser{Username: username, Password: secret}
	if err := c.do(ctx, "register", http.MethodPost, usersPath, nil, body, &created); err != nil {
		return core.Identity{}, err
	}
	if created.ID == "" {
		return core.Identity{}, gateway.Errorf("register", nil, "backend returned a user without id")
	}
	return created.Candidate().Identity, nil
}

// do performs one request. Any transport failure or non-2xx status becomes a
// *gateway.Error; out may be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return gateway.Errorf(op, err, "encode request: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return gateway.Errorf(op, err, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gateway.Errorf(op, err, "%s failed: %v", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := gateway.StatusError(op, resp.StatusCode)
		if detail := readDetail(resp.Body); detail != "" {
			gwErr.Message += ": " + detail
		}
		return gwErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return gateway.Errorf(op, err, "decode response: %v", err)
	}
	return nil
}

func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	s := strings.TrimSpace(string(b))
	if s == "" || s == "{}" {
		return ""
	}
	return s
}
