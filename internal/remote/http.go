package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/models"
)

// HTTPClient implements Client against the AirCater REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	session *Session
}

var paths = map[models.Kind]string{
	models.KindOrder:    "orders",
	models.KindClient:   "clients",
	models.KindCaterer:  "caterers",
	models.KindAirport:  "airports",
	models.KindFBO:      "fbos",
	models.KindMenuItem: "menu-items",
}

// NewHTTPClient returns a Client talking to the API at baseURL
// (e.g. "https://api.example.com"). session may carry empty tokens for
// endpoints that allow anonymous reads.
func NewHTTPClient(baseURL string, session *Session) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) url(parts ...string) string {
	return c.baseURL + "/api/v1/" + strings.Join(parts, "/")
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.url("ping"), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed with status %d: %w", resp.StatusCode, common.ErrTransientNetwork)
	}
	return nil
}

func (c *HTTPClient) FetchAll(ctx context.Context, kind models.Kind) ([]map[string]any, error) {
	path, ok := paths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	resp, err := c.do(ctx, http.MethodGet, c.url(path), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", kind, err)
	}
	return records, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, kind models.Kind, id string) (map[string]any, error) {
	path, ok := paths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	resp, err := c.do(ctx, http.MethodGet, c.url(path, id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", kind, id, common.ErrorNotFound)
	}
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var record map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return record, nil
}

func (c *HTTPClient) Perform(ctx context.Context, op models.Operation, kind models.Kind, id string,
	payload map[string]any, idempotencyKey string) (*Result, error) {

	path, ok := paths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	var method, url string
	switch op {
	case models.OpCreate:
		method, url = http.MethodPost, c.url(path)
	case models.OpUpdate:
		method, url = http.MethodPatch, c.url(path, id)
	case models.OpDelete:
		method, url = http.MethodDelete, c.url(path, id)
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
		}
	}

	resp, err := c.do(ctx, method, url, body, idempotencyKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// A 409 carries the server's current snapshot; routed to the conflict
	// resolver rather than treated as an error.
	if resp.StatusCode == http.StatusConflict {
		var serverVersion map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&serverVersion); err != nil {
			return nil, fmt.Errorf("failed to decode conflict snapshot: %w", err)
		}
		return &Result{Conflict: &Conflict{ServerVersion: serverVersion}}, nil
	}

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	result := &Result{}
	if op != models.OpDelete {
		if err := json.NewDecoder(resp.Body).Decode(&result.ServerEntity); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return result, nil
}

// do sends one request, attaching auth and the idempotency key, with a
// single refresh-and-retry on 401.
func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte, idempotencyKey string) (*http.Response, error) {
	send := func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set(common.IdempotencyKeyHeaderName, idempotencyKey)
		}
		if c.session != nil {
			token, err := c.session.Token(ctx)
			if err == nil && token != "" {
				req.Header.Set(common.AccessTokenHeaderName, "Bearer "+token)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w: %w", common.ErrTransientNetwork, err)
		}
		return resp, nil
	}

	resp, err := send()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
		_ = resp.Body.Close()
		if err := c.session.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("unauthorized and refresh failed: %w", common.ErrorUnauthorized)
		}
		return send()
	}
	return resp, nil
}

// classifyStatus maps non-2xx statuses onto the error taxonomy: 5xx and
// timeout-ish statuses are transient, remaining 4xx are terminal rejections.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readErrorDetail(resp.Body)

	switch {
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("server returned %d: %s: %w", resp.StatusCode, detail, common.ErrTransientNetwork)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("server returned 401: %w", common.ErrorUnauthorized)
	default:
		return fmt.Errorf("server returned %d: %s: %w", resp.StatusCode, detail, common.ErrRejected)
	}
}

func readErrorDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil || len(b) == 0 {
		return "no detail"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(b)
}
