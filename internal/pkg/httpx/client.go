// Package httpx is the HTTP transport primitive shared by the session
// manager and the push channel: one cookie jar, one instrumented transport.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"

	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/response"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	baseURL *url.URL
	client  *http.Client
	timeout time.Duration
}

// New builds a client for baseURL with a fresh cookie jar and an otelhttp
// transport. timeout bounds every single attempt.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	hc := &http.Client{
		Jar:       jar,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return NewWithClient(baseURL, hc, timeout)
}

func NewWithClient(baseURL string, hc *http.Client, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{baseURL: u, client: hc, timeout: timeout}, nil
}

// BaseURL returns a copy of the API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Jar returns the cookie jar, nil when the client was built without one.
func (c *Client) Jar() http.CookieJar {
	return c.client.Jar
}

// URL resolves an API path against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL.String() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Request is a fully buffered outbound call, so it can be replayed.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Header      http.Header
}

// JSON builds a request with a JSON-encoded body. A nil body sends none.
func JSON(method, path string, body any) (Request, error) {
	req := Request{Method: method, Path: path}
	if body == nil {
		return req, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return req, fmt.Errorf("encode request body: %w", err)
	}
	req.Body = b
	req.ContentType = "application/json"
	return req, nil
}

// Multipart builds a request carrying a single file part.
func Multipart(method, path, field, filename string, r io.Reader) (Request, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return Request{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Request{}, fmt.Errorf("copy form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart writer: %w", err)
	}
	return Request{Method: method, Path: path, Body: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Envelope decodes the body as the standard {success, data, meta} wrapper.
func (r *Response) Envelope() (*response.Envelope, error) {
	env := &response.Envelope{}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(r.Body, env); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return env, nil
}

// Do sends req once. Non-2xx responses come back as both a Response and an
// *xerrors.APIError; failures before a response are an *xerrors.APIError
// with StatusCode 0.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, c.URL(req.Path, req.Query), body)
	if err != nil {
		return nil, &xerrors.APIError{Kind: xerrors.KindUnknown, Method: req.Method, Path: req.Path, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, transportError(req, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(req, err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}
	if resp.StatusCode >= 400 {
		return out, statusError(req, out)
	}
	return out, nil
}

func transportError(req Request, err error) *xerrors.APIError {
	kind := xerrors.KindTransport
	switch {
	case xerrors.Is(err, context.DeadlineExceeded):
		kind = xerrors.KindTimeout
	case xerrors.Is(err, context.Canceled):
		kind = xerrors.KindCanceled
	}
	return &xerrors.APIError{Kind: kind, Method: req.Method, Path: req.Path, Err: err}
}

func statusError(req Request, resp *Response) *xerrors.APIError {
	var env response.Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return xerrors.NewAPIError(req.Method, req.Path, resp.StatusCode, "", strings.TrimSpace(string(resp.Body)))
	}
	return xerrors.NewAPIError(req.Method, req.Path, resp.StatusCode, env.Code, env.ErrorText())
}
