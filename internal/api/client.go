package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "SEEDSHARE_HTTP_TIMEOUT"
	adminTokenEnvKey   = "SEEDSHARE_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the seedshare API.
type Client struct {
	baseURL    string
	http       *http.Client
	adminToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// UploadRequest describes one submission. Exactly one of File or Text is used,
// chosen by UploadType.
type UploadRequest struct {
	SeedCode   string
	UploadType string
	FileName   string
	File       io.Reader
	Text       string
	Metadata   map[string]any
}

// Upload posts a multipart submission. File content is streamed, not buffered.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResponse, error) {
	var resp UploadResponse

	var metaJSON []byte
	if len(req.Metadata) > 0 {
		var err error
		if metaJSON, err = json.Marshal(req.Metadata); err != nil {
			return resp, fmt.Errorf("encode metadata: %w", err)
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, req, metaJSON))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		_ = pr.CloseWithError(err)
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, metaJSON []byte) error {
	if err := mw.WriteField("seed_code", req.SeedCode); err != nil {
		return err
	}
	if err := mw.WriteField("upload_type", req.UploadType); err != nil {
		return err
	}
	if len(metaJSON) > 0 {
		if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
			return err
		}
	}
	switch {
	case req.File != nil:
		name := req.FileName
		if name == "" {
			name = "upload"
		}
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, req.File); err != nil {
			return err
		}
	case req.Text != "":
		if err := mw.WriteField("text_message", req.Text); err != nil {
			return err
		}
	}
	return mw.Close()
}

// Resolve looks up where a seed code points.
func (c *Client) Resolve(ctx context.Context, seedCode string) (ResolveResponse, error) {
	var resp ResolveResponse
	err := c.do(ctx, http.MethodPost, "/file-name", nil, ResolveRequest{SeedCode: seedCode}, &resp)
	return resp, err
}

// Download streams the blob behind seedCode into w and returns the save name
// announced by the server.
func (c *Client) Download(ctx context.Context, seedCode string, w io.Writer) (string, int64, error) {
	httpResp, err := c.get(ctx, "/download/"+url.PathEscape(seedCode))
	if err != nil {
		return "", 0, err
	}
	defer httpResp.Body.Close()

	name := seedCode
	if _, params, err := mime.ParseMediaType(httpResp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	n, err := io.Copy(w, httpResp.Body)
	return name, n, err
}

// ViewResult is one preview. Preview is set for the JSON tiers; otherwise the
// content was streamed to the caller's writer.
type ViewResult struct {
	ContentType string
	Preview     *PreviewResponse
	Bytes       int64
}

// View fetches the inline preview for seedCode. Binary previews are copied to
// w.
func (c *Client) View(ctx context.Context, seedCode string, w io.Writer) (ViewResult, error) {
	var result ViewResult
	httpResp, err := c.get(ctx, "/view-file/"+url.PathEscape(seedCode))
	if err != nil {
		return result, err
	}
	defer httpResp.Body.Close()

	result.ContentType = httpResp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(result.ContentType); err == nil && mediaType == "application/json" {
		var preview PreviewResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&preview); err != nil {
			return result, err
		}
		result.Preview = &preview
		return result, nil
	}

	result.Bytes, err = io.Copy(w, httpResp.Body)
	return result, err
}

// AdminInfo returns store and limit details.
func (c *Client) AdminInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/admin/info", nil, nil, &resp)
	return resp, err
}

// AdminCleanup runs one expiry sweep. confirm must be set for non-dry runs.
func (c *Client) AdminCleanup(ctx context.Context, req CleanupRequest, confirm bool) (CleanupResponse, error) {
	var resp CleanupResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/cleanup", bytes.NewReader(payload))
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if confirm {
		httpReq.Header.Set("X-Confirm", "true")
	}
	c.setAdminHeader(httpReq)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(path, "/admin/") {
		c.setAdminHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set("X-Admin-Token", c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
