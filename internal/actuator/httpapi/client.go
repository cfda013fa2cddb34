// Package httpapi implements the Actuator capability against the
// building-management endpoint's private JSON API. Point values travel
// through a subscription protocol: a subscription handle is created once,
// property paths are attached to it, and reads return values keyed by the
// attachment index. Values arrive as IEEE-754 hex strings.
//
// Session cookies and the CSRF token are acquired out of band (a browser
// login exports them); this package only consumes the captured session
// file.
package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mholen/hvacctl/internal/actuator"
)

// DefaultCallTimeout bounds one API round trip when no override is given.
const DefaultCallTimeout = 30 * time.Second

// csrfCookieName is the session cookie doubling as the CSRF token when
// the session file carries no explicit one.
const csrfCookieName = "CSP"

var (
	// errBaseURLRequired is returned when no endpoint URL is provided.
	errBaseURLRequired = errors.New("endpoint base URL must be provided")
	// errNoSubscriptionHandle is returned when the endpoint answers a
	// CreateSubscription without a handle.
	errNoSubscriptionHandle = errors.New("endpoint returned no subscription handle")
	// errPointNotInResponse is returned when a read response carries no
	// item for the requested point.
	errPointNotInResponse = errors.New("endpoint response carries no value for point")
)

// SessionCookie is one captured browser cookie.
type SessionCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// SessionState is the captured login session consumed by the client.
// The layout matches the browser automation's storage-state export.
type SessionState struct {
	Cookies   []SessionCookie `json:"cookies"`
	CSRFToken string          `json:"csrf_token,omitempty"`
}

// Client talks to the endpoint's /json/POST command surface.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	csrfToken   string
	callTimeout time.Duration

	// mu guards the subscription bookkeeping below.
	mu sync.Mutex
	// handle is the live subscription handle, nil before the first read.
	handle *int
	// pathToIndex maps attached property paths to subscription indices.
	pathToIndex map[string]int
	// indexToPath is the reverse mapping, filled from attach responses.
	indexToPath map[int]string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a per-call timeout for API round trips.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithInsecureTLS disables certificate verification. The endpoint ships a
// self-signed certificate, so operators commonly need this.
func WithInsecureTLS() Option {
	return func(c *Client) {
		transport, ok := c.httpClient.Transport.(*http.Transport)
		if !ok {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}

		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Self-signed endpoint cert.
		c.httpClient.Transport = transport
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New creates a client for the endpoint at baseURL. Any URL fragment is
// stripped: the command surface always lives at the base domain.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	if idx := strings.Index(baseURL, "#"); idx >= 0 {
		baseURL = baseURL[:idx]
	}

	baseURL = strings.TrimRight(baseURL, "/")

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	client := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Jar: jar, Transport: transport},
		callTimeout: DefaultCallTimeout,
		pathToIndex: make(map[string]int),
		indexToPath: make(map[int]string),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// LoadSession reads a captured session file and installs its cookies.
// The CSP cookie doubles as CSRF token when the file carries no explicit
// one.
func (c *Client) LoadSession(path string) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var session SessionState
	if err = json.Unmarshal(contents, &session); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse endpoint URL: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(session.Cookies))

	for _, cookie := range session.Cookies {
		cookiePath := cookie.Path
		if cookiePath == "" {
			cookiePath = "/"
		}

		cookies = append(cookies, &http.Cookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: cookie.Domain,
			Path:   cookiePath,
		})

		if c.csrfToken == "" && cookie.Name == csrfCookieName {
			c.csrfToken = cookie.Value
		}
	}

	c.httpClient.Jar.SetCookies(base, cookies)

	if session.CSRFToken != "" {
		c.csrfToken = session.CSRFToken
	}

	return nil
}

// Read implements actuator.Actuator via the subscription protocol.
func (c *Client) Read(ctx context.Context, point string) (actuator.Result, error) {
	item, err := c.readProperty(ctx, point)
	if err != nil {
		return c.failure(ctx, point, "", err)
	}

	return actuator.Result{
		Point:         point,
		ObservedValue: item.displayValue(),
		Unit:          item.Property.Unit,
		Forced:        item.Property.Forced,
		Success:       true,
		Message:       "value read",
	}, nil
}

// Force implements actuator.Actuator. Dry runs resolve the point and
// report intent without issuing the force command.
func (c *Client) Force(ctx context.Context, point, value string, dryRun bool) (actuator.Result, error) {
	if dryRun {
		return actuator.Result{
			Point:          point,
			RequestedValue: value,
			Success:        true,
			Message:        "dry run, force not committed",
			DryRun:         true,
		}, nil
	}

	if err := c.command(ctx, "ForceValue", point, map[string]any{"value": value}); err != nil {
		return c.failure(ctx, point, value, err)
	}

	result := actuator.Result{
		Point:          point,
		RequestedValue: value,
		Forced:         true,
		Success:        true,
		Message:        "force applied",
	}

	// Best effort read-back of the committed value.
	if item, err := c.readProperty(ctx, point); err == nil {
		result.ObservedValue = item.displayValue()
		result.Unit = item.Property.Unit
		result.Forced = item.Property.Forced
	}

	return result, nil
}

// Unforce implements actuator.Actuator.
func (c *Client) Unforce(ctx context.Context, point string) (actuator.Result, error) {
	if err := c.command(ctx, "UnforceValue", point, nil); err != nil {
		return c.failure(ctx, point, "", err)
	}

	result := actuator.Result{
		Point:   point,
		Success: true,
		Message: "force released",
	}

	if item, err := c.readProperty(ctx, point); err == nil {
		result.ObservedValue = item.displayValue()
		result.Unit = item.Property.Unit
		result.Forced = item.Property.Forced
	}

	return result, nil
}

// failure maps an internal error to the uniform unsuccessful Result,
// keeping the error return reserved for context cancellation.
func (c *Client) failure(ctx context.Context, point, value string, err error) (actuator.Result, error) {
	if ctx.Err() != nil {
		return actuator.Result{}, ctx.Err()
	}

	return actuator.Result{
		Point:          point,
		RequestedValue: value,
		Message:        err.Error(),
	}, nil
}

// subscriptionItem is one entry of a ReadSubscription response.
type subscriptionItem struct {
	Index    *int `json:"index"`
	Property struct {
		Value  string `json:"value"`
		Unit   string `json:"unitDisplayName"`
		Forced bool   `json:"forced"`
		Status string `json:"status"`
	} `json:"property"`
}

// displayValue decodes the hex-encoded property value where possible and
// falls back to the raw text otherwise.
func (i *subscriptionItem) displayValue() string {
	if decoded, ok := hexToFloat(i.Property.Value); ok {
		return strconv.FormatFloat(decoded, 'g', -1, 64)
	}

	return i.Property.Value
}

// readProperty subscribes the point if needed and fetches its current value.
func (c *Client) readProperty(ctx context.Context, point string) (*subscriptionItem, error) {
	index, handle, err := c.ensureSubscribed(ctx, point)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"command": "ReadSubscription",
		"handle":  handle,
	}

	response, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Items []subscriptionItem `json:"items"`
	}

	if err = unwrap(response, "ReadSubscriptionRes", &result); err != nil {
		return nil, err
	}

	for idx := range result.Items {
		item := &result.Items[idx]
		if item.Index != nil && *item.Index == index {
			return item, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", errPointNotInResponse, point)
}

// ensureSubscribed returns the subscription index for a property path,
// creating the subscription and attaching the path on first use.
func (c *Client) ensureSubscribed(ctx context.Context, point string) (index, handle int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		if idx, ok := c.pathToIndex[point]; ok {
			return idx, *c.handle, nil
		}
	}

	if c.handle == nil {
		response, postErr := c.post(ctx, map[string]any{"command": "CreateSubscription"})
		if postErr != nil {
			return 0, 0, postErr
		}

		var created struct {
			Handle *int `json:"handle"`
		}

		if err = unwrap(response, "CreateSubscriptionRes", &created); err != nil {
			return 0, 0, err
		}

		if created.Handle == nil {
			return 0, 0, errNoSubscriptionHandle
		}

		c.handle = created.Handle
	}

	response, err := c.post(ctx, map[string]any{
		"command":       "AddToSubscription",
		"handle":        *c.handle,
		"propertyPaths": []string{point},
	})
	if err != nil {
		return 0, 0, err
	}

	var attached struct {
		Items []struct {
			Index *int   `json:"index"`
			Path  string `json:"path"`
		} `json:"items"`
	}

	if err = unwrap(response, "AddToSubscriptionRes", &attached); err != nil {
		return 0, 0, err
	}

	for _, item := range attached.Items {
		if item.Index == nil || item.Path == "" {
			continue
		}

		c.pathToIndex[item.Path] = *item.Index
		c.indexToPath[*item.Index] = item.Path
	}

	idx, ok := c.pathToIndex[point]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", errPointNotInResponse, point)
	}

	return idx, *c.handle, nil
}

// command issues a point-targeted command and checks for an error reply.
func (c *Client) command(ctx context.Context, name, point string, extra map[string]any) error {
	payload := map[string]any{
		"command": name,
		"path":    point,
	}

	for key, value := range extra {
		payload[key] = value
	}

	_, err := c.post(ctx, payload)

	return err
}

// post sends one JSON command to the endpoint and returns the decoded
// top-level response object.
func (c *Client) post(ctx context.Context, payload map[string]any) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	callCtx := ctx

	if c.callTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/json/POST", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Referer", c.baseURL+"/")

	if c.csrfToken != "" {
		request.Header.Set("X-CSRF-Token", c.csrfToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("post command: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("endpoint returned status %s", response.Status)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded map[string]json.RawMessage
	if err = json.Unmarshal(contents, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if raw, hasError := decoded["error"]; hasError {
		var message string

		_ = json.Unmarshal(raw, &message)

		if message == "" {
			message = string(raw)
		}

		return nil, fmt.Errorf("endpoint error: %s", message)
	}

	return decoded, nil
}

// unwrap decodes a named envelope from a response, falling back to the
// whole object when the endpoint answers without one.
func unwrap(response map[string]json.RawMessage, envelope string, out any) error {
	raw, ok := response[envelope]
	if !ok {
		whole, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("re-encode response: %w", err)
		}

		raw = whole
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", envelope, err)
	}

	return nil
}

// hexToFloat decodes an IEEE-754 hex string (e.g. 0x4043800000000000) to
// a float64.
func hexToFloat(value string) (float64, bool) {
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return 0, false
	}

	bits, err := strconv.ParseUint(value[2:], 16, 64)
	if err != nil {
		return 0, false
	}

	return math.Float64frombits(bits), true
}
