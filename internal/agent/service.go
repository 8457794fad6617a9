// internal/agent/service.go
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/metrics"
	"agent-wallet-service/internal/tools"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxRounds = 5

	roundsExhaustedReply = "I could not finish that request in a reasonable number of steps. Please try rephrasing it."
)

// ChatCompleter is the slice of the OpenAI client the service uses.
// *openai.ChatCompletionService satisfies it.
type ChatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ToolRunner is satisfied by *tools.Registry.
type ToolRunner interface {
	Definitions() []tools.Tool
	Run(ctx context.Context, name string, args string) (string, error)
}

// Service runs the prompt/tool loop in process.
type Service struct {
	completer ChatCompleter
	model     string
	tools     ToolRunner
	threads   ThreadStore
	maxRounds int
	logger    *zap.Logger
}

func NewService(completer ChatCompleter, model string, runner ToolRunner, threads ThreadStore, maxRounds int, logger *zap.Logger) *Service {
	if model == "" {
		model = DefaultModel
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if threads == nil {
		threads = NewMemoryThreadStore()
	}
	return &Service{
		completer: completer,
		model:     model,
		tools:     runner,
		threads:   threads,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// NewOpenAICompleter builds the official client. baseURL may be empty.
func NewOpenAICompleter(apiKey, baseURL string) ChatCompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client.Chat.Completions
}

// SendPrompt answers one user message, running tools the model asks for.
// Output carries the last successful tool result.
func (s *Service) SendPrompt(ctx context.Context, req PromptRequest) (*PromptResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.NewInvalidInput("message is required")
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	history, err := s.threads.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	content := req.Message
	if req.WalletAddress != "" {
		content += walletSuffix(req.WalletAddress)
	}

	defs := s.tools.Definitions()
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(SystemPrompt(defs)))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(content))

	toolParams := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		toolParams = append(toolParams, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        string(d.Name),
				Description: openai.String(d.Description),
				Parameters:  openai.FunctionParameters(d.Parameters),
			},
		})
	}

	var (
		reply      string
		lastOutput string
		answered   bool
	)
	for round := 0; round < s.maxRounds; round++ {
		completion, err := s.completer.New(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(s.model),
			Messages: messages,
			Tools:    toolParams,
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(completion.Choices) == 0 {
			return nil, errors.New("chat completion returned no choices")
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			reply = msg.Content
			answered = true
			break
		}

		messages = append(messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			result := s.runTool(ctx, call.Function.Name, call.Function.Arguments)
			if result.ok {
				lastOutput = result.text
			}
			messages = append(messages, openai.ToolMessage(result.text, call.ID))
		}
	}
	if !answered {
		s.logger.Warn("tool rounds exhausted",
			zap.String("thread_id", threadID),
			zap.Int("max_rounds", s.maxRounds))
		reply = roundsExhaustedReply
	}

	history = append(history,
		Message{Role: "user", Content: content},
		Message{Role: "assistant", Content: reply},
	)
	if err := s.threads.Save(ctx, threadID, history); err != nil {
		s.logger.Warn("failed to save thread", zap.String("thread_id", threadID), zap.Error(err))
	}

	resp := &PromptResponse{Response: reply, ThreadID: threadID}
	if lastOutput != "" {
		resp.Output = rawOutput(lastOutput)
	}
	return resp, nil
}

type toolResult struct {
	text string
	ok   bool
}

func (s *Service) runTool(ctx context.Context, name, args string) toolResult {
	out, err := s.tools.Run(ctx, name, args)
	switch {
	case errors.Is(err, domain.ErrToolNotFound):
		metrics.ToolCallsTotal.WithLabelValues("unknown", "not_found").Inc()
		s.logger.Warn("model requested unknown tool", zap.String("tool", name))
		return toolResult{text: "Error: tool not found"}
	case err != nil:
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return toolResult{text: "Error: " + err.Error()}
	}

	metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
	s.logger.Debug("tool executed", zap.String("tool", name))
	return toolResult{text: out, ok: true}
}

// rawOutput keeps JSON tool output as is and encodes plain text as a JSON
// string.
func rawOutput(out string) json.RawMessage {
	if json.Valid([]byte(out)) {
		return json.RawMessage(out)
	}
	data, _ := json.Marshal(out)
	return data
}
