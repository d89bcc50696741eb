// Package httpgw is a gateway.Gateway over the FeaturePlus REST API.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway"
)

// DefaultTimeout bounds one round-trip when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Client talks to the API rooted at baseURL (for example
// "http://localhost:8080/api").
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

var _ gateway.Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.ErrConfigInvalid("gateway.base_url", "is required for the http gateway")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// collection returns the REST collection for kind.
func collection(kind entity.Kind) string {
	switch kind {
	case entity.KindProject:
		return "/projects"
	case entity.KindFeature:
		return "/features"
	default:
		return "/tasks"
	}
}

func itemPath(key entity.Key) string {
	return collection(key.Kind) + "/" + key.ID
}

// Create implements gateway.Gateway.
func (c *Client) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	body := e.Clone()
	body.SetID("")
	return c.send(ctx, http.MethodPost, collection(e.Key().Kind), body, e.Key())
}

// Update implements gateway.Gateway.
func (c *Client) Update(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return c.send(ctx, http.MethodPut, itemPath(e.Key()), e, e.Key())
}

// Patch implements gateway.Gateway. Features use the field endpoint;
// tasks and projects are read, patched and written back at the version
// that was read.
func (c *Client) Patch(ctx context.Context, key entity.Key, p entity.Patch) (entity.Entity, error) {
	if key.Kind == entity.KindFeature {
		return c.send(ctx, http.MethodPatch, itemPath(key)+"/field", p, key)
	}
	return c.patchRecord(ctx, key, p)
}

// Delete implements gateway.Gateway.
func (c *Client) Delete(ctx context.Context, key entity.Key) error {
	_, err := c.do(ctx, http.MethodDelete, itemPath(key), nil, key)
	return err
}

// Get implements gateway.Gateway.
func (c *Client) Get(ctx context.Context, key entity.Key) (entity.Entity, error) {
	return c.send(ctx, http.MethodGet, itemPath(key), nil, key)
}

// ListProjects implements gateway.Gateway.
func (c *Client) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	return list[entity.Project](ctx, c, "/projects", "projects")
}

// ListFeatures implements gateway.Gateway.
func (c *Client) ListFeatures(ctx context.Context, projectID string) ([]*entity.Feature, error) {
	return list[entity.Feature](ctx, c, "/features/project/"+projectID, "features")
}

// ListTasks implements gateway.Gateway.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]*entity.Task, error) {
	return list[entity.Task](ctx, c, "/projects/"+projectID+"/tasks", "tasks")
}

func list[T any](ctx context.Context, c *Client, path, envelope string) ([]*T, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil, entity.Key{})
	if err != nil {
		return nil, err
	}
	arr := gjson.ParseBytes(data)
	if !arr.IsArray() {
		arr = arr.Get(envelope)
	}
	var out []*T
	for _, item := range arr.Array() {
		v := new(T)
		if err := json.Unmarshal(normalizeIDs(item), v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// send performs a request whose response is a single record of key's kind.
func (c *Client) send(ctx context.Context, method, path string, body any, key entity.Key) (entity.Entity, error) {
	data, err := c.do(ctx, method, path, body, key)
	if err != nil {
		return nil, err
	}
	return c.decodeRecord(data, key)
}

func (c *Client) decodeRecord(data []byte, key entity.Key) (entity.Entity, error) {
	doc := gjson.ParseBytes(data)
	envelope := string(key.Kind)
	if inner := doc.Get(envelope); inner.IsObject() {
		if w := doc.Get("warning"); w.Exists() {
			c.logger.Warn("remote warning", "key", key.String(), "warning", w.String())
		}
		doc = inner
	}
	out, err := entity.New(key.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(normalizeIDs(doc), out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key.Kind, err)
	}
	return out, nil
}

// do sends the request and returns the response body, mapping failures to
// remote error codes.
func (c *Client) do(ctx context.Context, method, path string, body any, key entity.Key) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote request failed", "method", method, "path", path, "error", err)
		return nil, gateway.Classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.Classify(err)
	}
	c.logger.Debug("remote request", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, data, key)
	}
	return data, nil
}

// statusError maps an HTTP failure onto a remote error code. The message is
// taken from the body's "error" field when present.
func statusError(status int, body []byte, key entity.Key) error {
	msg := gjson.GetBytes(body, "error").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	target := key.String()
	if key.IsZero() {
		target = "resource"
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errors.ErrValidation(string(key.Kind), msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.ErrUnauthorized(msg)
	case status == http.StatusNotFound:
		return errors.ErrNotFound(target)
	case status == http.StatusConflict:
		return errors.ErrConflict(target, msg)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return errors.ErrTimeout(fmt.Errorf("status %d: %s", status, msg))
	default:
		return errors.ErrNetwork(fmt.Errorf("status %d: %s", status, msg))
	}
}

// idFields are the reference fields the API may send as numbers.
var idFields = map[string]bool{
	"id":                true,
	"project_id":        true,
	"parent_feature_id": true,
	"feature_id":        true,
	"sub_feature_id":    true,
	"owner_id":          true,
	"assignee_id":       true,
	"attachment_id":     true,
	"user_id":           true,
}

// normalizeIDs rewrites numeric id fields of a JSON object (and of objects
// nested in its arrays) as strings and flattens tag rows to their names.
func normalizeIDs(doc gjson.Result) []byte {
	if !doc.IsObject() {
		return []byte(doc.Raw)
	}
	out := make(map[string]json.RawMessage)
	doc.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		switch {
		case idFields[name] && v.Type == gjson.Number:
			quoted, _ := json.Marshal(v.Raw)
			out[name] = quoted
		case v.IsArray():
			items := make([]json.RawMessage, 0, len(v.Array()))
			for _, item := range v.Array() {
				if name == "tags" && item.IsObject() {
					// tag rows come back as {"id":..,"name":..}
					quoted, _ := json.Marshal(item.Get("name").String())
					items = append(items, quoted)
					continue
				}
				items = append(items, normalizeIDs(item))
			}
			raw, _ := json.Marshal(items)
			out[name] = raw
		default:
			out[name] = json.RawMessage(v.Raw)
		}
		return true
	})
	raw, _ := json.Marshal(out)
	return raw
}
