package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/triage/pkg/session"
	"github.com/go-go-golems/triage/pkg/settings"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// Client talks to the conversation backend over HTTP+JSON.
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	userAgent    string
	newRequestID func() string
}

var _ Gateway = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithRequestIDFunc(f func() string) ClientOption {
	return func(client *Client) {
		client.newRequestID = f
	}
}

// NewClient validates the configured base URL and builds a client whose requests
// time out after the configured timeout.
func NewClient(cs *settings.ClientSettings, options ...ClientOption) (*Client, error) {
	if cs == nil {
		cs = settings.NewClientSettings()
	}
	base, err := ValidateBaseURL(cs.BaseURL, cs.AllowRemoteHTTP)
	if err != nil {
		return nil, err
	}

	ret := &Client{
		httpClient: &http.Client{
			Timeout: cs.EffectiveTimeout(),
		},
		baseURL:      base,
		userAgent:    "triage",
		newRequestID: shortuuid.New,
	}
	if cs.UserAgent != nil && *cs.UserAgent != "" {
		ret.userAgent = *cs.UserAgent
	}
	for _, option := range options {
		option(ret)
	}

	return ret, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.Path = c.baseURL.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.baseURL.EscapedPath() + "/" + strings.Join(escaped, "/")
	return u.String()
}

func (c *Client) do(ctx context.Context, op string, method string, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: could not encode request", op)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "%s: could not build request", op)
	}
	requestID := c.newRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("op", op).Str("request_id", requestID).Msg("backend request failed")
		return &TransportError{Op: op, Err: err}
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("url", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &TransportError{Op: op, StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			te.Message = errResp.Error
		}
		return te
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.Wrap(err, "could not decode backend response"),
		}
	}
	return nil
}

func (c *Client) ListSessions(ctx context.Context) ([]session.Session, error) {
	var resp ListSessionsResponse
	if err := c.do(ctx, "list sessions", http.MethodGet, c.endpoint("conversation-history"), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Sessions == nil {
		return []session.Session{}, nil
	}
	return resp.Sessions, nil
}

func (c *Client) GetSessionHistory(ctx context.Context, sessionID string) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.do(ctx, "get session history", http.MethodGet, c.endpoint("session-history", sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SendMessage(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.do(ctx, "send message", http.MethodPost, c.endpoint("chat"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateSession(ctx context.Context, model string) (*CreateSessionResponse, error) {
	var resp CreateSessionResponse
	err := c.do(ctx, "create session", http.MethodPost, c.endpoint("new-session"), &CreateSessionRequest{Model: model}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, &TransportError{Op: "create session", Err: errors.New("backend returned no session id")}
	}
	return &resp, nil
}

func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "clear session", http.MethodPost, c.endpoint("clear-session", sessionID), nil, &ackResponse{})
}

func (c *Client) ClearAllSessions(ctx context.Context) error {
	return c.do(ctx, "clear all sessions", http.MethodPost, c.endpoint("clear-all-sessions"), nil, &ackResponse{})
}

func (c *Client) RenameSession(ctx context.Context, sessionID string, title string) error {
	return c.do(ctx, "rename session", http.MethodPost, c.endpoint("rename-session", sessionID),
		&RenameSessionRequest{Title: title}, &ackResponse{})
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "delete session", http.MethodDelete, c.endpoint("delete-session", sessionID), nil, &ackResponse{})
}

func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	if err := c.do(ctx, "health", http.MethodGet, c.endpoint("health"), nil, &resp); err != nil {
		return err
	}
	if resp.Status != "healthy" {
		return &TransportError{Op: "health", Message: "backend reports status " + resp.Status}
	}
	return nil
}

func (c *Client) AllMessages(ctx context.Context) ([]SessionMessage, error) {
	var resp AllMessagesResponse
	if err := c.do(ctx, "all messages", http.MethodGet, c.endpoint("all-messages"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.AllMessages, nil
}
