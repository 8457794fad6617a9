// internal/agent/contract.go
package agent

import (
	"context"
	"encoding/json"
)

// PromptRequest is the body accepted by the LLM service and by POST /prompt.
type PromptRequest struct {
	Message       string `json:"message"`
	ThreadID      string `json:"threadId,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// PromptResponse carries the model reply. Output is the raw structured tool
// result: a JSON string or an object such as {"success":true,"transaction":"..."}.
type PromptResponse struct {
	Response string          `json:"response"`
	Output   json.RawMessage `json:"output,omitempty"`
	ThreadID string          `json:"threadId"`
}

type PromptService interface {
	SendPrompt(ctx context.Context, req PromptRequest) (*PromptResponse, error)
}
