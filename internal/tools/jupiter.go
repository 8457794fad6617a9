// internal/tools/jupiter.go
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	DefaultJupiterURL = "https://quote-api.jup.ag/v6"

	// NativeMint is wrapped SOL, the input side of every buy.
	NativeMint = "So11111111111111111111111111111111111111112"

	swapSlippageBps  = 200
	swapMaxAccounts  = 20
	swapPriorityFees = "auto"
)

// APIError is a non-2xx answer from the Jupiter API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter API error (%d): %s", e.Status, e.Message)
}

func swapErrorCode(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Code != "":
		return apiErr.Code
	case errors.As(err, &apiErr):
		return fmt.Sprintf("HTTP_%d", apiErr.Status)
	case errors.Is(err, domain.ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// JupiterClient builds unsigned swap transactions through the Jupiter
// quote and swap endpoints.
type JupiterClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewJupiterClient(baseURL string, logger *zap.Logger) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	return &JupiterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// BuildSwap quotes SOL into req.OutputMint and returns the base64 swap
// transaction with req.UserWallet as fee payer.
func (c *JupiterClient) BuildSwap(ctx context.Context, req SwapRequest) (string, error) {
	if !sol.IsValidAddress(req.UserWallet) {
		return "", domain.NewInvalidInput("invalid user wallet address")
	}
	if _, err := solana.PublicKeyFromBase58(req.OutputMint); err != nil {
		return "", domain.NewInvalidInput("invalid output mint address")
	}
	lamports, err := domain.SOLToLamports(req.InputAmount)
	if err != nil {
		return "", err
	}

	// 1. Quote
	query := url.Values{}
	query.Set("inputMint", NativeMint)
	query.Set("outputMint", req.OutputMint)
	query.Set("amount", fmt.Sprintf("%d", lamports))
	query.Set("slippageBps", fmt.Sprintf("%d", swapSlippageBps))
	query.Set("onlyDirectRoutes", "true")
	query.Set("asLegacyTransaction", "false")
	query.Set("maxAccounts", fmt.Sprintf("%d", swapMaxAccounts))

	var quote json.RawMessage
	if err := c.get(ctx, "/quote?"+query.Encode(), &quote); err != nil {
		return "", fmt.Errorf("failed to get quote: %w", err)
	}

	// 2. Swap
	payload := map[string]interface{}{
		"quoteResponse":             quote,
		"userPublicKey":             req.UserWallet,
		"prioritizationFeeLamports": swapPriorityFees,
	}
	var result struct {
		SwapTransaction      string `json:"swapTransaction"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}
	if err := c.post(ctx, "/swap", payload, &result); err != nil {
		return "", fmt.Errorf("failed to build swap: %w", err)
	}
	if result.SwapTransaction == "" {
		return "", &APIError{Status: http.StatusBadGateway, Code: "EMPTY_SWAP", Message: "no swap transaction returned"}
	}

	c.logger.Info("swap transaction built",
		zap.String("output_mint", req.OutputMint),
		zap.Uint64("lamports", lamports),
		zap.Uint64("last_valid_block_height", result.LastValidBlockHeight))

	return result.SwapTransaction, nil
}

// ============================================================================
// HTTP HELPERS
// ============================================================================

func (c *JupiterClient) post(ctx context.Context, path string, payload interface{}, result interface{}) error {
	return c.request(ctx, http.MethodPost, path, payload, result)
}

func (c *JupiterClient) get(ctx context.Context, path string, result interface{}) error {
	return c.request(ctx, http.MethodGet, path, nil, result)
}

func (c *JupiterClient) request(ctx context.Context, method, path string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Jupiter API request",
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		c.logger.Error("Jupiter API error",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(bodyBytes)))

		apiErr := &APIError{Status: resp.StatusCode, Message: string(bodyBytes)}
		var parsed struct {
			Error     string `json:"error"`
			ErrorCode string `json:"errorCode"`
		}
		if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
			apiErr.Code = parsed.ErrorCode
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
