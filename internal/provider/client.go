// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wearly/tryon-embed/internal/signing"
)

// APIError is a rejection reported by the provider itself, as opposed to a
// transport failure reaching it.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error code %d", e.Code)
	}
	return fmt.Sprintf("provider error code %d: %s", e.Code, e.Message)
}

type Deps struct {
	APIURL          string
	AccessKeyID     string
	AccessKeySecret string
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Client talks to the upstream try-on provider, minting a fresh signed token
// per call.
type Client struct {
	apiURL          string
	accessKeyID     string
	accessKeySecret string
	httpClient      *http.Client
	logger          *slog.Logger
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
		apiURL:          deps.APIURL,
		accessKeyID:     deps.AccessKeyID,
		accessKeySecret: deps.AccessKeySecret,
		httpClient:      hc,
		logger:          l,
	}
}

type submitRequest struct {
	HumanImage string `json:"human_image"`
	ClothImage string `json:"cloth_image"`
}

type submitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// Submit creates a try-on job from a pair of base64 image payloads and
// returns the provider's task ID.
func (c *Client) Submit(ctx context.Context, humanImage, clothImage string) (string, error) {
	body, err := json.Marshal(submitRequest{
		HumanImage: humanImage,
		ClothImage: clothImage,
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}

	if parsed.Code != 0 {
		c.logger.Warn("provider rejected submission",
			"code", parsed.Code,
			"message", parsed.Message,
		)
		return "", &APIError{Code: parsed.Code, Message: parsed.Message}
	}

	if parsed.Data.TaskID == "" {
		return "", fmt.Errorf("provider returned no task id")
	}

	return parsed.Data.TaskID, nil
}

// Status fetches the raw job-status payload for taskID. The payload is passed
// through untouched; interpreting it is the caller's concern.
func (c *Client) Status(ctx context.Context, taskID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("provider returned invalid status payload")
	}

	return raw, nil
}

func (c *Client) authorize(req *http.Request) {
	token := signing.Token(c.accessKeyID, c.accessKeySecret, time.Now())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
}
