package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

// Endpoint paths relative to the configured base URL.
const (
	PathModelUpload    = "/models/upload"
	PathDatasetUpload  = "/datasets/upload"
	PathDatasetGen     = "/datasets/generate"
	PathSimulationRun  = "/simulation/run"
	PathRecentRuns     = "/simulations/recent"
	defaultHTTPTimeout = 2 * time.Minute

	// maxErrorBody bounds how much of a failed response is read for a detail message.
	maxErrorBody = 64 << 10
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// DetailOf returns the server-supplied detail carried by err, if any.
func DetailOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// Client talks to the remote evaluation service.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: newTransport(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service origin this client targets.
func (c *Client) BaseURL() string {
	return c.base
}

type pathResponse struct {
	Path string `json:"path"`
}

// UploadModel uploads a serialized model and returns its remote path.
func (c *Client) UploadModel(ctx context.Context, a *model.Artifact) (string, error) {
	return c.upload(ctx, PathModelUpload, a)
}

// UploadDataset uploads a dataset (or generation sample) and returns its remote path.
func (c *Client) UploadDataset(ctx context.Context, a *model.Artifact) (string, error) {
	return c.upload(ctx, PathDatasetUpload, a)
}

func (c *Client) upload(ctx context.Context, path string, a *model.Artifact) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", a.Name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(a.Content); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	var resp pathResponse
	if err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &body, &resp); err != nil {
		return "", err
	}
	if resp.Path == "" {
		return "", fmt.Errorf("upload %s: response has no path", path)
	}
	return resp.Path, nil
}

// GenerateDataset requests a synthetic dataset and returns its remote path.
func (c *Client) GenerateDataset(ctx context.Context, req model.GenerationRequest) (string, error) {
	var resp pathResponse
	if err := c.postJSON(ctx, PathDatasetGen, req, &resp); err != nil {
		return "", err
	}
	if resp.Path == "" {
		return "", fmt.Errorf("generate dataset: response has no path")
	}
	return resp.Path, nil
}

// RunSimulation submits a run request and returns the raw metrics document.
func (c *Client) RunSimulation(ctx context.Context, req model.RunRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.postJSON(ctx, PathSimulationRun, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// RecentSimulations lists prior runs for an organization.
func (c *Client) RecentSimulations(ctx context.Context, orgID string) ([]model.RunHistoryEntry, error) {
	path := PathRecentRuns + "?org_id=" + url.QueryEscape(orgID)
	var entries []model.RunHistoryEntry
	if err := c.do(ctx, http.MethodGet, path, "", nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.RunHistoryEntry{}
	}
	return entries, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) (err error) {
	start := time.Now()
	endpoint := endpointLabel(path)
	defer func() {
		observeCall(endpoint, start, err)
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// parseDetail extracts the "detail" field of an error body. Validation errors
// arrive as a list of objects; the first message is used.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Msg)
	}
	return ""
}

// endpointLabel strips the query string so metrics labels stay bounded.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
