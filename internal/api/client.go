package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/observability"
)

// TokenSource is the gateway's handle on the Token Authority.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context)
}

// Request describes one REST call. Route is the templated path used as a
// metric label; it defaults to Path.
type Request struct {
	Method string
	Path   string
	Route  string
	Query  url.Values
	Body   any
}

// Client is the authenticated request gateway. Every call carries the current
// bearer token and survives one token expiry through a refresh-and-retry.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	deviceID string
}

// NewClient constructs the gateway. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, deviceID string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		tokens:   tokens,
		deviceID: deviceID,
	}
}

// Do performs req and decodes a 2xx JSON body into out (when out is non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = encoded
	}

	token := c.tokens.AccessToken()
	retried := false
	for {
		respBody, err := c.send(ctx, req, body, token)
		if err == nil {
			return decodeInto(respBody, out)
		}

		var apiErr *Error
		if retried || !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
			return err
		}
		retried = true

		// another request already rotated the pair while this one was in flight
		if current := c.tokens.AccessToken(); current != "" && current != token {
			token = current
			continue
		}

		refreshed, refreshErr := c.tokens.Refresh(ctx)
		if refreshErr != nil {
			c.tokens.Logout(ctx)
			return err
		}
		token = refreshed
	}
}

func (c *Client) send(ctx context.Context, req Request, body []byte, token string) ([]byte, error) {
	route := req.Route
	if route == "" {
		route = req.Path
	}

	ctx, span := otel.Tracer("chat-client/api").Start(ctx, "api.request", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.route", route),
	)

	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	observability.EnsureRequestID(httpReq)
	observability.SetDeviceID(httpReq.Header, c.deviceID)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		observability.ObserveAPIRequest(req.Method, route, 0, time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	observability.ObserveAPIRequest(req.Method, route, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, errorFromResponse(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindServer, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
