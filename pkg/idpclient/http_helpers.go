package idpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes caps how much of a response body we buffer.
const maxResponseBytes = 4 << 20

// maxErrorBody caps the body excerpt carried by errors.
const maxErrorBody = 512

type request struct {
	method      string
	path        string
	query       url.Values
	jsonBody    any
	rawBody     string
	contentType string
	noAuth      bool
}

type response struct {
	status int
	header http.Header
	body   []byte

	// attempt is 1 for the first try of a call, 2 for the first retry and so on.
	attempt int
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

func (r *response) apiError(op string, sentinel error) error {
	return &APIError{Op: op, StatusCode: r.status, Body: excerpt(r.body), Err: sentinel}
}

func (r *response) decode(target any) error {
	if err := json.Unmarshal(r.body, target); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

// expectSuccess is the check for calls where any 2xx will do.
func expectSuccess(op string) func(*response) error {
	return func(r *response) error {
		if r.ok() {
			return nil
		}
		return r.apiError(op, nil)
	}
}

// call runs req under the retry policy. check turns a non-retryable response
// into the operation's own error; returning nil accepts the response.
func (c *Client) call(ctx context.Context, op string, req request, check func(*response) error) (*response, error) {
	start := c.now()

	var (
		out      *response
		attempts int
	)
	err := c.retry(ctx, op, func(ctx context.Context) error {
		attempts++
		resp, err := c.attempt(ctx, req)
		if err != nil {
			return err
		}
		resp.attempt = attempts
		if err := check(resp); err != nil {
			return err
		}
		out = resp
		return nil
	})

	c.observer.ObserveCall(op, outcomeOf(err), c.now().Sub(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attempt performs exactly one HTTP exchange.
func (c *Client) attempt(ctx context.Context, req request) (*response, error) {
	var token string
	if !req.noAuth {
		var err error
		if token, err = c.creds.get(ctx); err != nil {
			return nil, err
		}
	}

	u := c.cfg.BaseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.jsonBody != nil:
		buf, err := json.Marshal(req.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	case req.rawBody != "":
		body = strings.NewReader(req.rawBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{Err: err}
	}
	defer httpResp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportError{Err: fmt.Errorf("read body: %w", err)}
	}

	resp := &response{status: httpResp.StatusCode, header: httpResp.Header, body: buf}

	if resp.status >= 500 {
		return nil, &statusError{StatusCode: resp.status, Body: excerpt(resp.body)}
	}
	if resp.status == http.StatusUnauthorized && token != "" {
		// The service no longer accepts our credential; drop it so the next
		// attempt fetches a new one.
		c.creds.invalidate(token)
		return nil, &statusError{StatusCode: resp.status}
	}
	return resp, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isUnavailable(err):
		return "unavailable"
	case isAPIError(err):
		return "client_error"
	default:
		return "error"
	}
}
