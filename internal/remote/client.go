// Package remote talks to the authoritative PostgREST-style store. It
// translates domain records to and from the remote schema, enforces
// per-table column whitelists, coerces numeric columns that arrive as
// strings, and adapts to remote schemas that lack optional columns.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// pgUndefinedColumn is the error code the remote store returns when a
// statement references a column that does not exist.
const pgUndefinedColumn = "42703"

// Client is an HTTP client for the remote store's REST surface.
type Client struct {
	BaseURL  string
	APIKey   string
	HTTP     *http.Client
	PageSize int

	caps    *Capabilities
	limiter *rate.Limiter
}

// New creates a remote client with fresh capability flags. The rate
// limiter matches the hosted store's default request metering.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		PageSize: 500,
		caps:     NewCapabilities(),
		limiter:  rate.NewLimiter(rate.Limit(25), 50),
	}
}

// Capabilities exposes the adapter's current view of the remote schema,
// for diagnostics.
func (c *Client) Capabilities() Capabilities {
	return *c.caps
}

// apiError is the standard error body from the remote store.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// missingColumn reports whether err is the remote store complaining
// about an undefined column, and if so which column it named.
// The message shape is `column "purchase_price" of relation "products"
// does not exist` (the relation part is absent on some versions).
func missingColumn(err error) (string, bool) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	if apiErr.Code != pgUndefinedColumn {
		return "", false
	}
	msg := apiErr.Message
	start := strings.IndexAny(msg, `"'`)
	if start < 0 {
		return "", false
	}
	quote := msg[start]
	end := strings.IndexByte(msg[start+1:], quote)
	if end < 0 {
		return "", false
	}
	return msg[start+1 : start+1+end], true
}

// do executes one request against /rest/v1/{table} with the given query
// string and optional JSON body, decoding the response into result.
func (c *Client) do(ctx context.Context, method, table, query string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := c.BaseURL + "/rest/v1/" + table
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	// Writes echo the affected rows so the caller sees assigned ids.
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && (apiErr.Code != "" || apiErr.Message != "") {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// insert writes a translated, whitelisted row and returns the stored
// row as the server represents it. A flagged optional column the remote
// schema turned out not to carry is stripped and the write retried, one
// retry per discovered column; afterwards the capability flag keeps it
// out of every payload up front. The retry loop is bounded because each
// round downgrades a flag that was still up.
func (c *Client) insert(ctx context.Context, s *entitySchema, row map[string]any) (map[string]any, error) {
	c.caps.strip(s, row)

	for {
		got, err := c.insertOnce(ctx, s, row)
		if err == nil {
			return got, nil
		}
		col, ok := missingColumn(err)
		if !ok || !c.caps.downgrade(s, col) {
			return nil, err
		}
		delete(row, col)
	}
}

func (c *Client) insertOnce(ctx context.Context, s *entitySchema, row map[string]any) (map[string]any, error) {
	var rows []map[string]any
	if err := c.do(ctx, http.MethodPost, s.table, "", row, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s: empty representation", s.table)
	}
	return rows[0], nil
}

// update patches the row with the given id, with the same drift
// handling as insert.
func (c *Client) update(ctx context.Context, s *entitySchema, id int64, row map[string]any) (map[string]any, error) {
	c.caps.strip(s, row)

	for {
		got, err := c.updateOnce(ctx, s, id, row)
		if err == nil {
			return got, nil
		}
		col, ok := missingColumn(err)
		if !ok || !c.caps.downgrade(s, col) {
			return nil, err
		}
		delete(row, col)
	}
}

func (c *Client) updateOnce(ctx context.Context, s *entitySchema, id int64, row map[string]any) (map[string]any, error) {
	var rows []map[string]any
	query := fmt.Sprintf("id=eq.%d", id)
	if err := c.do(ctx, http.MethodPatch, s.table, query, row, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s id=%d: %w", s.table, id, ErrNotFound)
	}
	return rows[0], nil
}

// deleteByID removes the row with the given id.
func (c *Client) deleteByID(ctx context.Context, s *entitySchema, id int64) error {
	return c.do(ctx, http.MethodDelete, s.table, fmt.Sprintf("id=eq.%d", id), nil, nil)
}

// deleteAll removes every row in the table. Used only by clear-data.
func (c *Client) deleteAll(ctx context.Context, s *entitySchema) error {
	return c.do(ctx, http.MethodDelete, s.table, "id=gte.0", nil, nil)
}

// selectRows fetches rows matching the given filter query.
func (c *Client) selectRows(ctx context.Context, s *entitySchema, query string) ([]map[string]any, error) {
	var rows []map[string]any
	if err := c.do(ctx, http.MethodGet, s.table, query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// selectOne fetches the row with the given id, nil when absent.
func (c *Client) selectOne(ctx context.Context, s *entitySchema, id int64) (map[string]any, error) {
	rows, err := c.selectRows(ctx, s, fmt.Sprintf("select=*&id=eq.%d", id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
