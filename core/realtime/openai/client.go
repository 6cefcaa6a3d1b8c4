// Package openai implements realtime.Client on top of the OpenAI Realtime
// API websocket protocol.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-ui/core/realtime"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	scopeName = "github.com/koscakluka/ema-ui/core/realtime/openai"

	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-realtime"
)

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var _ realtime.Client = (*Client)(nil)

type Client struct {
	baseURL    string
	dialer     *websocket.Dialer
	httpClient *http.Client
	debug      bool
}

type ClientOption func(*Client)

// WithBaseURL points the client at a different API root, such as a proxy.
// Both http(s) and ws(s) schemes are accepted.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = dialer }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithDebug logs every event exchanged with the backend.
func WithDebug(debug bool) ClientOption {
	return func(c *Client) { c.debug = debug }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		dialer:     websocket.DefaultDialer,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the realtime endpoint, configures the session and starts reading
// backend events. The returned handle delivers them through the callbacks in
// opts until it is closed.
func (c *Client) Open(ctx context.Context, credential string, opts ...realtime.SessionOption) (realtime.Handle, error) {
	options := realtime.Apply(opts...)
	if options.Model == "" {
		options.Model = defaultModel
	}

	ctx, span := tracer.Start(ctx, "open realtime session")
	defer span.End()
	span.SetAttributes(attribute.String("session.model", options.Model))

	endpoint, err := c.realtimeURL(options.Model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, http.Header{
		"Authorization": {"Bearer " + credential},
		"OpenAI-Beta":   {"realtime=v1"},
	})
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("failed to open realtime connection (%s): %w", resp.Status, err)
		} else {
			err = fmt.Errorf("failed to open realtime connection: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s := newSession(conn, options, c.debug)
	if err := s.send(ctx, newSessionUpdate(options)); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to configure realtime session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	go s.processIncomingMessages()
	return s, nil
}

func (c *Client) realtimeURL(model string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path += "/realtime"
	u.RawQuery = url.Values{"model": {model}}.Encode()
	return u.String(), nil
}

type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// CreateClientSecret mints a short-lived credential that a less trusted
// process can use to open a session in place of the API key.
func (c *Client) CreateClientSecret(ctx context.Context, apiKey, model string) (*ClientSecret, error) {
	ctx, span := tracer.Start(ctx, "create realtime client secret")
	defer span.End()

	if model == "" {
		model = defaultModel
	}
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("non-OK HTTP status: %s: %w", resp.Status, realtime.NormalizeError(decodeErrorBody(respBody)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var session struct {
		ClientSecret ClientSecret `json:"client_secret"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("error unmarshalling response body: %w", err)
	}
	return &session.ClientSecret, nil
}

func decodeErrorBody(body []byte) any {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}
