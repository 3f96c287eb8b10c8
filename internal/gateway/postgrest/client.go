// Package postgrest talks to a Supabase-style backend over HTTP: PostgREST for
// tables and RPCs, the storage API for images and edge functions for imports.
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockdash/internal/gateway"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// Client implements gateway.Gateway, gateway.ObjectStore and gateway.FunctionInvoker.
type Client struct {
	http    *resty.Client
	baseURL string
}

func New(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.URL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("apikey", cfg.Key).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Key)).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{http: restyClient, baseURL: base}
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error: status=%d, code=%s, message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error: status=%d, message=%s", e.Status, e.Message)
}

// errorBody covers both the PostgREST and the storage error shapes.
type errorBody struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Error   string `json:"error"`
}

func checkResponse(resp *resty.Response, action string) error {
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	var body errorBody
	_ = json.Unmarshal(resp.Body(), &body)

	apiErr := &APIError{Status: resp.StatusCode(), Message: body.Message}
	if body.Code != nil {
		apiErr.Code = fmt.Sprint(body.Code)
	}
	if apiErr.Message == "" {
		apiErr.Message = firstNonEmpty(body.Error, body.Details, strings.TrimSpace(string(resp.Body())), resp.Status())
	}
	return fmt.Errorf("%s: %w", action, apiErr)
}

func (c *Client) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	params := filterParams(q.Filters)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	if q.Order != nil {
		dir := "desc"
		if q.Order.Ascending {
			dir = "asc"
		}
		params.Set("order", q.Order.Column+"."+dir)
	}

	req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(params)
	if q.Range != nil {
		req.SetHeader("Range-Unit", "items").
			SetHeader("Range", fmt.Sprintf("%d-%d", q.Range.From, q.Range.To))
	}

	var rows []gateway.Row
	resp, err := req.SetResult(&rows).Get("/rest/v1/" + table)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	// 416 means the range starts past the last row.
	if resp.StatusCode() == http.StatusRequestedRangeNotSatisfiable {
		return []gateway.Row{}, nil
	}
	if err := checkResponse(resp, "select "+table); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Count(ctx context.Context, table string, filters ...gateway.Filter) (int, error) {
	params := filterParams(filters)
	params.Set("select", "*")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetHeader("Prefer", "count=exact").
		Head("/rest/v1/" + table)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if err := checkResponse(resp, "count "+table); err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header().Get("Content-Range"))
}

// parseContentRange reads the total from "0-24/3573" or "*/0".
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0, fmt.Errorf("invalid content-range %q", header)
	}
	total, err := strconv.Atoi(header[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid content-range %q: %w", header, err)
	}
	return total, nil
}

func (c *Client) Insert(ctx context.Context, table string, record gateway.Row) (gateway.Row, error) {
	var rows []gateway.Row
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody(record).
		SetResult(&rows).
		Post("/rest/v1/" + table)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if err := checkResponse(resp, "insert "+table); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: %w", table, gateway.ErrNoRows)
	}
	return rows[0], nil
}

// Update asks for the patched ids back, since PostgREST answers a PATCH that
// matched nothing with an empty success.
func (c *Client) Update(ctx context.Context, table string, patch gateway.Row, filter gateway.Filter) error {
	params := filterParams([]gateway.Filter{filter})
	params.Set("select", "id")
	var rows []gateway.Row
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody(patch).
		SetResult(&rows).
		Patch("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if err := checkResponse(resp, "update "+table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("update %s: %w", table, gateway.ErrNotFound)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, table string, filter gateway.Filter) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(filterParams([]gateway.Filter{filter})).
		SetHeader("Prefer", "return=minimal").
		Delete("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return checkResponse(resp, "delete "+table)
}

// RPC calls a database function. Set-returning functions answer with an array,
// scalar-row functions with a single object; both come back as rows.
func (c *Client) RPC(ctx context.Context, name string, args map[string]any) ([]gateway.Row, error) {
	if args == nil {
		args = map[string]any{}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(args).
		Post("/rest/v1/rpc/" + name)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", name, err)
	}
	if err := checkResponse(resp, "rpc "+name); err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", name, err)
	}
	return rows, nil
}

func decodeRows(body []byte) ([]gateway.Row, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return []gateway.Row{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var rows []gateway.Row
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return rows, nil
	}
	var row gateway.Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return []gateway.Row{row}, nil
}

func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("Cache-Control", "3600").
		SetHeader("x-upsert", "false").
		SetBody(data).
		Post(fmt.Sprintf("/storage/v1/object/%s/%s", bucket, path))
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return checkResponse(resp, "upload "+bucket+"/"+path)
}

func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, path)
}

func (c *Client) PathFromURL(bucket, rawURL string) (string, bool) {
	prefix := fmt.Sprintf("%s/storage/v1/object/public/%s/", c.baseURL, bucket)
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(rawURL, prefix)
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return path, path != ""
}

func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"prefixes": paths}).
		Delete("/storage/v1/object/" + bucket)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	return checkResponse(resp, "remove from "+bucket)
}

// Invoke calls an edge function. A non-object answer is returned under "result".
func (c *Client) Invoke(ctx context.Context, name string, body any) (gateway.Row, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/functions/v1/" + name)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}
	if err := checkResponse(resp, "invoke "+name); err != nil {
		return nil, err
	}

	var decoded any
	if len(resp.Body()) == 0 {
		return gateway.Row{}, nil
	}
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return gateway.Row{"result": string(resp.Body())}, nil
	}
	if obj, ok := decoded.(map[string]any); ok {
		return gateway.Row(obj), nil
	}
	return gateway.Row{"result": decoded}, nil
}

func filterParams(filters []gateway.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		if f.Value == nil {
			params.Add(f.Column, "is.null")
			continue
		}
		params.Add(f.Column, "eq."+fmt.Sprint(f.Value))
	}
	return params
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
