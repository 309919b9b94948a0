// Package api provides the HTTP client for the compliance-analysis service.
//
// The service exposes bearer-authenticated REST endpoints plus two streaming
// check endpoints whose responses are chunked text in the SSE record format
// "data:<kind>:<content>" with records separated by a blank line. The client
// returns the raw streaming body; framing and decoding live in
// internal/stream so that the per-session engine owns its own buffer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fpang/compliance-media-cli/internal/auth"
	"github.com/rs/zerolog/log"
)

// restTimeout bounds non-streaming REST calls. The streaming client carries
// no overall timeout: a video analysis may stream for many minutes, so
// cancellation happens through the request context instead.
const restTimeout = 60 * time.Second

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("compliance API: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the compliance-analysis service.
type Client struct {
	baseURL       string
	streamClient  *http.Client
	restClient    *http.Client
	tokenProvider auth.TokenProvider
}

// NewClient creates a client for the given base URL. tokenProvider supplies
// the bearer credential per request; configuration is explicit rather than
// ambient module state.
func NewClient(baseURL string, tokenProvider auth.TokenProvider) *Client {
	return &Client{
		baseURL:       baseURL,
		streamClient:  &http.Client{},
		restClient:    &http.Client{Timeout: restTimeout},
		tokenProvider: tokenProvider,
	}
}

// VideoCheckRequest describes one video submission. Exactly one of FilePath
// or VideoURL must be set: a local file goes up as multipart, a URL (usually
// obtained from UploadVideo) goes up as JSON.
type VideoCheckRequest struct {
	FilePath      string
	VideoURL      string
	Message       string
	AnalysisModes []string
	BrandName     string
}

// CheckImage submits an image for compliance analysis and returns the
// streaming response body. The caller owns the body and must close it.
func (c *Client) CheckImage(ctx context.Context, filePath, message string) (io.ReadCloser, error) {
	body, contentType, err := fileForm(filePath, map[string]string{"text": message})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("file", filepath.Base(filePath)).Msg("Submitting image for compliance check")
	return c.openStream(ctx, "/api/compliance/check-image", body, contentType)
}

// CheckVideo submits a video for compliance analysis and returns the
// streaming response body.
func (c *Client) CheckVideo(ctx context.Context, req VideoCheckRequest) (io.ReadCloser, error) {
	if req.VideoURL != "" {
		payload, err := json.Marshal(map[string]any{
			"video_url":      req.VideoURL,
			"message":        req.Message,
			"analysis_modes": req.AnalysisModes,
			"brand_name":     req.BrandName,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal video check request: %w", err)
		}
		log.Debug().Str("videoUrl", req.VideoURL).Msg("Submitting video URL for compliance check")
		return c.openStream(ctx, "/api/compliance/check-video", bytes.NewReader(payload), "application/json")
	}

	body, contentType, err := fileForm(req.FilePath, map[string]string{
		"message":    req.Message,
		"brand_name": req.BrandName,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", filepath.Base(req.FilePath)).Msg("Submitting video file for compliance check")
	return c.openStream(ctx, "/api/compliance/check-video", body, contentType)
}

// uploadResponse is the storage endpoint's reply.
type uploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// UploadVideo uploads a video to the storage endpoint and returns the URL to
// reuse as video_url in a subsequent CheckVideo call.
func (c *Client) UploadVideo(ctx context.Context, filePath string) (string, error) {
	body, contentType, err := fileForm(filePath, nil)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload-video/", body, contentType)
	if err != nil {
		return "", err
	}

	resp, err := c.restClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var upload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if upload.URL != "" {
		return upload.URL, nil
	}
	return upload.Filename, nil
}

// SubmitFeedback posts user feedback for a completed check.
func (c *Client) SubmitFeedback(ctx context.Context, checkID, feedback string) error {
	payload, err := json.Marshal(map[string]string{
		"check_id": checkID,
		"feedback": feedback,
	})
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/compliance/feedback", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}

	resp, err := c.restClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// HistoryItem is one entry in the compliance-check history listing.
type HistoryItem struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Brand     string `json:"brand_name"`
	CreatedAt string `json:"created_at"`
}

// History lists past compliance checks.
func (c *Client) History(ctx context.Context) ([]HistoryItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/compliance/history", nil, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.restClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var items []HistoryItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return items, nil
}

// HistoryDetail fetches the stored payload of one past check verbatim. The
// caller normalizes it through stream.ResolveDetail before rendering.
func (c *Client) HistoryDetail(ctx context.Context, id string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/compliance/history/"+id, nil, "")
	if err != nil {
		return "", err
	}

	resp, err := c.restClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch history detail: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read history detail: %w", err)
	}
	return string(raw), nil
}

// --- Internal helpers ---

// openStream issues a streaming POST and returns the undrained body.
// Non-2xx responses are read in full and surfaced as an HTTPError.
func (c *Client) openStream(ctx context.Context, endpoint string, body io.Reader, contentType string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body, contentType)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open analysis stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	log.Debug().Str("path", endpoint).Int("status", resp.StatusCode).Msg("Analysis stream opened")
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, err := c.tokenProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
}

// fileForm builds an in-memory multipart body with the media file under the
// "file" field plus any extra text fields. Returns the body and content type.
func fileForm(filePath string, fields map[string]string) (io.Reader, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", filePath, err)
	}

	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
