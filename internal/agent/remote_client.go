// internal/agent/remote_client.go
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RemoteClient forwards prompts to an external agent exposing POST /prompt.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRemoteClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *RemoteClient) SendPrompt(ctx context.Context, req PromptRequest) (*PromptResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		c.logger.Error("agent API error",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		var failure struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(bodyBytes, &failure) == nil && failure.Error != "" {
			if failure.Details != "" {
				return nil, fmt.Errorf("agent API error (%d): %s: %s", resp.StatusCode, failure.Error, failure.Details)
			}
			return nil, fmt.Errorf("agent API error (%d): %s", resp.StatusCode, failure.Error)
		}
		return nil, fmt.Errorf("agent API error (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	var out PromptResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
