// Package gateway is the client for the Pulse backend REST surface.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// InsightWindow is the number of recent snapshots sent for an insight.
	InsightWindow = 20
	// FullHistoryLimit is the largest page the backend serves.
	FullHistoryLimit = 200
)

// TokenSource supplies the current access token, "" when signed out.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client calls the backend. Every call is a single attempt.
type Client struct {
	baseURL *url.URL
	tokens  TokenSource
	http    *http.Client
	logger  *zap.Logger
}

// New returns a client rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("api base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base URL %q", baseURL)
	}
	if tokens == nil {
		tokens = TokenFunc(func(context.Context) (string, error) { return "", nil })
	}
	c := &Client{baseURL: u, tokens: tokens, http: http.DefaultClient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("gateway")
	return c, nil
}

// Attachment is a file sent with a mood submission.
type Attachment struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// MoodSubmission is the multipart payload of POST /api/mood.
type MoodSubmission struct {
	Text string
	File *Attachment
}

// SubmitMood posts a mood snapshot.
func (c *Client) SubmitMood(ctx context.Context, sub MoodSubmission) (MoodResult, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return MoodResult{}, err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if text := strings.TrimSpace(sub.Text); text != "" {
		if err := form.WriteField("text", text); err != nil {
			return MoodResult{}, fmt.Errorf("encode text: %w", err)
		}
	}
	if sub.File != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, sub.File.Name))
		contentType := sub.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err != nil {
			return MoodResult{}, fmt.Errorf("encode file: %w", err)
		}
		if _, err := io.Copy(part, sub.File.Body); err != nil {
			return MoodResult{}, fmt.Errorf("read attachment: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return MoodResult{}, fmt.Errorf("encode form: %w", err)
	}

	var result MoodResult
	err = c.do(ctx, http.MethodPost, "/api/mood", nil, token, form.FormDataContentType(), &buf, &result)
	return result, err
}

// SubmitChat sends one chat message. An empty sessionID lets the backend start one.
func (c *Client) SubmitChat(ctx context.Context, content, sessionID string) (ChatResult, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return ChatResult{}, err
	}
	payload := map[string]string{"content": content}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	var result ChatResult
	err = c.doJSON(ctx, http.MethodPost, "/api/chat", nil, token, payload, &result)
	return result, err
}

// ChatHistory returns stored chat turns as the backend orders them (newest first).
// limit <= 0 uses the backend default.
func (c *Client) ChatHistory(ctx context.Context, limit int) ([]ChatHistoryItem, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return nil, err
	}
	var items []ChatHistoryItem
	err = c.doJSON(ctx, http.MethodGet, "/api/chat/history", limitQuery(limit), token, nil, &items)
	return items, err
}

// MoodHistory returns stored snapshots newest first. The token is attached
// when available; the backend decides whether anonymous reads are allowed.
func (c *Client) MoodHistory(ctx context.Context, limit int) ([]MoodSnapshot, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	var items []MoodSnapshot
	err = c.doJSON(ctx, http.MethodGet, "/mood/history", limitQuery(limit), token, nil, &items)
	return items, err
}

// MoodInsight asks for a summary of the most recent InsightWindow snapshots.
func (c *Client) MoodInsight(ctx context.Context, moods []MoodSnapshot) (string, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return "", err
	}
	var result struct {
		Insight string `json:"insight"`
	}
	payload := map[string][]MoodSnapshot{"moods": MostRecent(moods, InsightWindow)}
	err = c.doJSON(ctx, http.MethodPost, "/mood/insight", nil, token, payload, &result)
	return result.Insight, err
}

// SyncUser reconciles the signed-in identity with the backend user record.
func (c *Client) SyncUser(ctx context.Context) (User, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return User{}, err
	}
	var u User
	err = c.doJSON(ctx, http.MethodPost, "/api/users/sync", nil, "", map[string]string{"access_token": token}, &u)
	return u, err
}

// MostRecent returns up to n snapshots, newest first.
func MostRecent(moods []MoodSnapshot, n int) []MoodSnapshot {
	sorted := make([]MoodSnapshot, len(moods))
	copy(sorted, moods)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

func (c *Client) requireToken(ctx context.Context) (string, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, token string, payload, dst any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, token, contentType, body, dst)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token, contentType string, body io.Reader, dst any) error {
	op := method + " " + path
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
		c.logger.Debug("request failed", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if dst == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unexpected response from server"}
	}
	return nil
}

// errorMessage extracts error, detail or message from a JSON error body.
func errorMessage(data []byte, status int) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			raw, ok := body[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}
