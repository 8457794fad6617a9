// internal/usecase/extract.go
package usecase

import (
	"bytes"
	"encoding/json"
	"regexp"

	"agent-wallet-service/internal/agent"
)

var transactionDataPattern = regexp.MustCompile(`Transaction Data: ([A-Za-z0-9+/=]+)`)

// ExtractTransaction finds a staged transaction in an agent reply. The
// structured output wins; the "Transaction Data:" marker in the text is only
// consulted when the output is absent or unusable.
func ExtractTransaction(resp *agent.PromptResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	if blob, ok := transactionFromOutput(resp.Output); ok {
		return blob, true
	}
	if m := transactionDataPattern.FindStringSubmatch(resp.Response); m != nil {
		return m[1], true
	}
	return "", false
}

func transactionFromOutput(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	// tool output often arrives as a JSON encoded string
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = []byte(encoded)
	}

	var out struct {
		Success     bool   `json:"success"`
		Transaction string `json:"transaction"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false
	}
	if !out.Success || out.Transaction == "" {
		return "", false
	}
	return out.Transaction, true
}
