// Package relayclient is the embedded app's client for the same-origin
// relay: job submission, status polling, and the image proxy used to read
// cross-origin product images.
package relayclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wearly/tryon-embed/internal/workflow"
)

type Deps struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(deps Deps) *Client {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	hc := deps.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(deps.BaseURL, "/"),
		httpClient: hc,
		logger:     l,
	}
}

type submitRequest struct {
	HumanImage string `json:"humanImage"`
	ClothImage string `json:"clothImage"`
}

type submitResponse struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error"`
}

// Submit posts the base64 image pair to the relay and returns the task ID.
// Relay rejections come back as *workflow.SubmissionError carrying the
// relay's user-facing message.
func (c *Client) Submit(ctx context.Context, humanImage, clothImage string) (string, error) {
	body, err := json.Marshal(submitRequest{
		HumanImage: humanImage,
		ClothImage: clothImage,
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tryon", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.TaskID == "" {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("relay returned status %d", resp.StatusCode)
		}
		return "", &workflow.SubmissionError{Message: msg}
	}

	return parsed.TaskID, nil
}

// statusPayload mirrors the provider payload the relay passes through.
type statusPayload struct {
	Data struct {
		TaskStatus    string   `json:"task_status"`
		TaskStatusMsg string   `json:"task_status_msg"`
		Progress      *float64 `json:"progress"`
		TaskResult    struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"task_result"`
	} `json:"data"`
}

// Poll fetches the job status for taskID. Transport failures return an
// error; unrecognized payloads map to JobStateUnknown. Both are treated as
// transient by the workflow and retried.
func (c *Client) Poll(ctx context.Context, taskID string) (workflow.JobStatus, error) {
	endpoint := c.baseURL + "/api/tryon/status?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return workflow.JobStatus{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return workflow.JobStatus{}, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return workflow.JobStatus{}, fmt.Errorf("relay status endpoint returned %d", resp.StatusCode)
	}

	var parsed statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return workflow.JobStatus{}, fmt.Errorf("decode status response: %w", err)
	}

	return mapStatus(parsed), nil
}

func mapStatus(p statusPayload) workflow.JobStatus {
	switch p.Data.TaskStatus {
	case "succeed", "succeeded":
		for _, img := range p.Data.TaskResult.Images {
			if img.URL != "" {
				return workflow.JobStatus{
					State:     workflow.JobStateSucceeded,
					Progress:  -1,
					ResultURL: img.URL,
				}
			}
		}
		// A success without a result image cannot be presented; terminal
		// failure rather than polling forever.
		return workflow.JobStatus{
			State:    workflow.JobStateFailed,
			Progress: -1,
			Message:  "no result image returned",
		}

	case "failed":
		return workflow.JobStatus{
			State:    workflow.JobStateFailed,
			Progress: -1,
			Message:  p.Data.TaskStatusMsg,
		}

	case "submitted", "queued", "pending", "processing":
		progress := -1.0
		if p.Data.Progress != nil {
			progress = *p.Data.Progress
		}
		return workflow.JobStatus{
			State:    workflow.JobStateProcessing,
			Progress: progress,
		}

	default:
		return workflow.JobStatus{State: workflow.JobStateUnknown, Progress: -1}
	}
}

// FetchDataURI converts a product image reference into a base64 data URI.
// Data URIs pass through untouched; URLs are fetched through the relay's
// image proxy to sidestep cross-origin read restrictions.
func (c *Client) FetchDataURI(ctx context.Context, src string) (string, error) {
	if strings.HasPrefix(src, "data:") {
		return src, nil
	}

	endpoint := c.baseURL + "/api/proxy-image?url=" + url.QueryEscape(src)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build proxy request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("proxy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image proxy returned %d for %s", resp.StatusCode, src)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read proxied image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
