package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

const (
	// CSRFCookie is the cookie the backend stores its CSRF token in.
	CSRFCookie = "csrftoken"
	// CSRFHeader carries the token on mutating requests.
	CSRFHeader = "X-CSRFToken"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Paths holds the endpoint paths. Pages of the web deployment used
// slightly different prefixes, so every path is configurable.
type Paths struct {
	TriggerScan       string `mapstructure:"trigger-scan"`
	ScanResult        string `mapstructure:"scan-result"`
	Verify            string `mapstructure:"verify"`
	LatestFingerprint string `mapstructure:"latest-fingerprint"`
	PendingTemplates  string `mapstructure:"pending-templates"`
	ClearSession      string `mapstructure:"clear-session"`
}

// DefaultPaths returns the paths used by the stock backend.
func DefaultPaths() Paths {
	return Paths{
		TriggerScan:       "/api/trigger-scan/",
		ScanResult:        "/api/scan-result/",
		Verify:            "/api/fingerprint-verification/",
		LatestFingerprint: "/api/get-latest-fingerprint/",
		PendingTemplates:  "/api/get-pending-templates/",
		ClearSession:      "/api/clear-session/",
	}
}

// Client implements model.ScanBackend over HTTP+JSON.
type Client struct {
	base  *url.URL
	http  *http.Client
	paths Paths
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A client without a
// cookie jar cannot forward the CSRF token.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPaths overrides endpoint paths; empty fields keep their defaults.
func WithPaths(p Paths) Option {
	return func(c *Client) {
		d := &c.paths
		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&d.TriggerScan, p.TriggerScan)
		set(&d.ScanResult, p.ScanResult)
		set(&d.Verify, p.Verify)
		set(&d.LatestFingerprint, p.LatestFingerprint)
		set(&d.PendingTemplates, p.PendingTemplates)
		set(&d.ClearSession, p.ClearSession)
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("scanapi: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("scanapi: base url %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("scanapi: cookie jar: %w", err)
	}
	c := &Client{
		base:  u,
		http:  &http.Client{Jar: jar, Timeout: defaultTimeout},
		paths: DefaultPaths(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// SetCSRFToken seeds the cookie jar, for deployments where the token is
// handed out of band rather than by a prior GET.
func (c *Client) SetCSRFToken(token string) {
	if c.http.Jar == nil || token == "" {
		return
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: CSRFCookie, Value: token, Path: "/"}})
}

// Prime loads the backend root so the server can set the csrftoken cookie,
// the way a page load does in a browser.
func (c *Client) Prime(ctx context.Context) error {
	return c.call(ctx, "prime", http.MethodGet, "/", nil, nil, nil)
}

// csrfToken reads the token from the cookie jar; empty when absent.
func (c *Client) csrfToken() string {
	if c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == CSRFCookie {
			if v, err := url.QueryUnescape(ck.Value); err == nil {
				return v
			}
			return ck.Value
		}
	}
	return ""
}

func (c *Client) endpoint(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref).String()
}

// call performs one request and decodes the JSON body into dest. Any
// failure is reported as a *TransportError tagged with op.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body interface{}, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("marshal body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(CSRFHeader, c.csrfToken())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: http %d: %v", ErrMalformed, resp.StatusCode, err)}
	}
	return nil
}

// ClearSession asks the backend to drop any stale scan state.
func (c *Client) ClearSession(ctx context.Context) error {
	return c.call(ctx, "clear session", http.MethodPost, c.paths.ClearSession, nil, struct{}{}, nil)
}

// TriggerScan arms the device and returns the trigger id to poll with.
func (c *Client) TriggerScan(ctx context.Context, treq model.TriggerRequest) (string, error) {
	var resp statusEnvelope
	if err := c.call(ctx, "trigger scan", http.MethodPost, c.paths.TriggerScan, nil, treq, &resp); err != nil {
		return "", err
	}
	return decodeTrigger(resp)
}

// ScanResult polls the outcome of a trigger.
func (c *Client) ScanResult(ctx context.Context, triggerID string) (model.ScanResult, error) {
	var resp statusEnvelope
	q := url.Values{"trigger_id": {triggerID}}
	if err := c.call(ctx, "scan result", http.MethodGet, c.paths.ScanResult, q, nil, &resp); err != nil {
		return nil, err
	}
	return decodeScanResult(resp)
}

// VerifyFingerprint checks a captured fingerprint id against the roll.
func (c *Client) VerifyFingerprint(ctx context.Context, fingerprintID string) (model.VerifyResult, error) {
	var resp statusEnvelope
	body := map[string]string{"fingerprint_id": fingerprintID}
	if err := c.call(ctx, "verify fingerprint", http.MethodPost, c.paths.Verify, nil, body, &resp); err != nil {
		return nil, err
	}
	return decodeVerify(resp)
}

// LatestFingerprint returns the most recent capture, if any.
func (c *Client) LatestFingerprint(ctx context.Context) (string, bool, error) {
	var resp statusEnvelope
	if err := c.call(ctx, "latest fingerprint", http.MethodGet, c.paths.LatestFingerprint, nil, nil, &resp); err != nil {
		return "", false, err
	}
	if resp.Status != "success" || resp.FingerprintID == "" {
		return "", false, nil
	}
	return string(resp.FingerprintID), true, nil
}

// PendingTemplates lists captured templates not yet bound to a voter.
func (c *Client) PendingTemplates(ctx context.Context) ([]model.Template, error) {
	var templates []model.Template
	if err := c.call(ctx, "pending templates", http.MethodGet, c.paths.PendingTemplates, nil, nil, &templates); err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []model.Template{}
	}
	return templates, nil
}

var _ model.ScanBackend = (*Client)(nil)
