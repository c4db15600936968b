package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

// envelope is the wire shape of every backend response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client calls the job portal backend. Calls that need a user are sent
// through an oauth2.Transport which attaches the current bearer token.
type Client struct {
	baseURL   string
	public    *http.Client
	authed    *http.Client
	userAgent string
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*clientOptions)

type clientOptions struct {
	base      http.RoundTripper
	timeout   time.Duration
	userAgent string
}

// WithTransport sets the base round tripper (primarily for testing).
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(o *clientOptions) {
		o.userAgent = ua
	}
}

// New creates a client for baseURL. tokens supplies the bearer token for
// authenticated calls.
func New(baseURL string, tokens oauth2.TokenSource, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[apiclient.New] baseURL is required")
	}
	if tokens == nil {
		return nil, errors.New("[apiclient.New] token source is required")
	}

	opts := clientOptions{
		base:      http.DefaultTransport,
		timeout:   15 * time.Second,
		userAgent: "jobportal-client",
	}
	for _, opt := range options {
		opt(&opts)
	}

	base := requestIDTransport{next: opts.base}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		public:    &http.Client{Transport: base, Timeout: opts.timeout},
		authed:    &http.Client{Transport: &oauth2.Transport{Source: tokens, Base: base}, Timeout: opts.timeout},
		userAgent: opts.userAgent,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// requestIDTransport tags every request so client and server logs can be
// correlated.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t requestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(requestIDHeader) == "" {
		r = r.Clone(r.Context())
		r.Header.Set(requestIDHeader, uuid.NewString())
	}
	return t.next.RoundTrip(r)
}

type request struct {
	method      string
	path        string
	authed      bool
	body        any
	rawBody     io.Reader
	contentType string
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, authed: true}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, authed bool, body, out any) error {
	return c.do(ctx, request{method: method, path: path, authed: authed, body: body}, out)
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	body := req.rawBody
	contentType := req.contentType
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return &Error{Err: errors.Wrap(err, "marshal request")}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return &Error{Err: errors.Wrap(err, "build request")}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	hc := c.public
	if req.authed {
		hc = c.authed
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrNoAccessToken) {
			return &Error{StatusCode: http.StatusUnauthorized, Err: err}
		}
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read response")}
	}

	var env envelope
	decodeErr := json.Unmarshal(payload, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: firstNonEmpty(env.Error, env.Message)}
	}
	if decodeErr != nil {
		return &Error{StatusCode: resp.StatusCode, Err: errors.Wrap(decodeErr, "decode envelope")}
	}
	if !env.Success {
		// 2xx with success:false is an application level rejection
		return &Error{StatusCode: http.StatusUnprocessableEntity, Message: firstNonEmpty(env.Error, env.Message)}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode data")}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
