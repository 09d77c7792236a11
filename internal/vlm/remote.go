package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// RemoteClient sends rendered pages to a DocTags conversion endpoint.
type RemoteClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewRemoteClient(url, apiKey, model string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &RemoteClient{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type convertRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Page   int    `json:"page"`
	Image  string `json:"image"`
}

type convertResponse struct {
	DocTags string `json:"doctags"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RemoteClient) ConvertPage(ctx context.Context, img image.Image, page int) (string, error) {
	if img == nil {
		return "", errors.New("no page image")
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	body, err := json.Marshal(convertRequest{
		Model:  c.model,
		Prompt: BuildPagePrompt(page),
		Page:   page,
		Image:  base64.StdEncoding.EncodeToString(encoded.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("vlm api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vlm api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp convertResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("vlm error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	markup := stripCodeBlock(apiResp.DocTags)
	if markup == "" {
		return "", fmt.Errorf("empty response from vlm")
	}
	return markup, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:xml)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases idle connections.
func (c *RemoteClient) Close() {
	c.httpClient.CloseIdleConnections()
}
