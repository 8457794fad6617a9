package usecase

import (
	"encoding/json"
	"testing"

	"agent-wallet-service/internal/agent"

	"github.com/stretchr/testify/assert"
)

func TestExtractTransaction(t *testing.T) {
	tests := []struct {
		name     string
		response string
		output   string
		want     string
		found    bool
	}{
		{
			name:   "object output",
			output: `{"success":true,"transaction":"AQID"}`,
			want:   "AQID",
			found:  true,
		},
		{
			name:   "string encoded output",
			output: `"{\"success\":true,\"transaction\":\"AQID\"}"`,
			want:   "AQID",
			found:  true,
		},
		{
			name:     "structured output wins over marker",
			response: "Transaction Data: BBBB",
			output:   `{"success":true,"transaction":"AQID"}`,
			want:     "AQID",
			found:    true,
		},
		{
			name:     "marker fallback when output is not json",
			response: "Done.\nTransaction Data: AQIDBA==",
			output:   `"not json at all"`,
			want:     "AQIDBA==",
			found:    true,
		},
		{
			name:     "marker fallback when output reports failure",
			response: "Transaction Data: AQID",
			output:   `{"status":"error","message":"no route","code":"QUOTE_FAILED"}`,
			want:     "AQID",
			found:    true,
		},
		{
			name:   "unsuccessful output without marker",
			output: `{"success":false,"transaction":"AQID"}`,
		},
		{
			name:     "plain reply",
			response: "Your balance is 2 SOL",
		},
		{
			name:     "null output",
			response: "hi",
			output:   `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &agent.PromptResponse{Response: tt.response}
			if tt.output != "" {
				resp.Output = json.RawMessage(tt.output)
			}
			got, found := ExtractTransaction(resp)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}

	_, found := ExtractTransaction(nil)
	assert.False(t, found)
}
