package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"medchat/internal/models"
)

const maxBodyBytes = 1 << 20

// SessionStore is the part of the session the transport needs.
type SessionStore interface {
	Token() string
	Expired() bool
	SetAuthData(token string, user *models.PublicUser) error
	Clear() error
}

// Transport talks to the chat REST API. It holds no chat state of its own.
type Transport struct {
	baseURL string
	http    *http.Client
	session SessionStore
	logger  *zap.Logger
	timeout time.Duration
}

type Option func(*Transport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithTimeout bounds every request. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// New creates a Transport for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, sess SessionStore, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		session: sess,
		logger:  zap.NewNop(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// do performs one request and returns the decoded success envelope.
// Every failure is one of the four error kinds in errors.go.
func (t *Transport) do(ctx context.Context, method, path string, in any, authed bool) (*models.Envelope, error) {
	op := method + " " + path

	var token string
	if authed {
		token = t.session.Token()
		if token == "" {
			return nil, &AuthError{Message: "not signed in"}
		}
		if t.session.Expired() {
			return nil, &AuthError{Message: "session expired"}
		}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}

	var env models.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		msg := ""
		if decodeErr == nil {
			msg = env.ErrorText()
		}
		return nil, &AuthError{Message: msg}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ValidationError{StatusCode: resp.StatusCode, Message: errorText(resp.StatusCode, raw, &env, decodeErr)}
	}

	if decodeErr != nil {
		return nil, &ProtocolError{Reason: "undecodable response body", Err: decodeErr}
	}
	switch env.Status {
	case models.StatusSuccess:
		return &env, nil
	case models.StatusError:
		msg := env.ErrorText()
		if msg == "" {
			msg = "request failed"
		}
		return nil, &ValidationError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil, &ProtocolError{Reason: fmt.Sprintf("invalid envelope status %q", env.Status)}
}

// errorText picks the message of a non-2xx response: the envelope's text,
// then a short plain body, then a generic status line.
func errorText(code int, raw []byte, env *models.Envelope, decodeErr error) string {
	if decodeErr == nil {
		if msg := env.ErrorText(); msg != "" {
			return msg
		}
	} else {
		text := strings.TrimSpace(string(raw))
		if text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
			return text
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", code)
}

// decode unmarshals an envelope field, reporting a contract violation when
// the field is missing or malformed.
func decode(field string, raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &ProtocolError{Reason: "missing " + field}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Reason: "malformed " + field, Err: err}
	}
	return nil
}
