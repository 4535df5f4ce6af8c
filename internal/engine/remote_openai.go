package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Barent/natshell/internal/logging"
)

var plaintextAPIKeyWarnOnce sync.Once

// RemoteOpenAIEngine posts chat-completions payloads to an OpenAI-compatible
// endpoint, retrying transient failures with exponential backoff.
type RemoteOpenAIEngine struct {
	APIKey     string
	BaseURL    string
	Model      string
	httpClient *http.Client
}

// NewRemoteOpenAIEngine returns a RemoteOpenAIEngine. readTimeout scales the
// underlying HTTP client's timeout.
func NewRemoteOpenAIEngine(apiKey, baseURL, model string, readTimeout time.Duration) *RemoteOpenAIEngine {
	if readTimeout <= 0 {
		readTimeout = 2 * time.Minute
	}
	return &RemoteOpenAIEngine{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		httpClient: &http.Client{
			Timeout: readTimeout,
		},
	}
}

func (e *RemoteOpenAIEngine) Name() string { return "remote" }

type openAIChatMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolRef `json:"tool_calls,omitempty"`
}

type openAIToolRef struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFuncSpec `json:"function"`
}

type openAIToolFuncSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIChatRequest struct {
	Model       string               `json:"model"`
	Messages    []openAIChatMessage  `json:"messages"`
	Tools       []openAITool         `json:"tools,omitempty"`
	Temperature float64              `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string          `json:"content"`
			ToolCalls []openAIToolRef `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toOpenAIMessages(messages []Message) []openAIChatMessage {
	out := make([]openAIChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openAIChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toOpenAIToolRefs(m.ToolCalls),
		})
	}
	return out
}

// toOpenAIToolRefs re-encodes a replayed assistant turn's tool calls into
// OpenAI's wire shape, where arguments travel as a JSON-encoded string
// rather than a nested object.
func toOpenAIToolRefs(calls []ToolCall) []openAIToolRef {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openAIToolRef, 0, len(calls))
	for _, c := range calls {
		args, err := json.Marshal(c.Args)
		if err != nil {
			args = []byte("{}")
		}
		out = append(out, openAIToolRef{
			ID:   c.ID,
			Type: "function",
			Function: openAIToolFunction{
				Name:      c.Name,
				Arguments: string(args),
			},
		})
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIToolFuncSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// warnIfPlaintextRemote emits a one-time warning when an API key would
// cross the wire to a non-loopback host over plaintext HTTP.
func warnIfPlaintextRemote(baseURL, apiKey string) {
	if apiKey == "" {
		return
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != "http" {
		return
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return
	}
	plaintextAPIKeyWarnOnce.Do(func() {
		logging.EngineWarn("remote engine: sending API key to %s over plaintext HTTP", u.Host)
	})
}

// ChatCompletion implements the Inference Engine contract's remote backend,
// retrying transient failures twice with 1s then 2s backoff.
func (e *RemoteOpenAIEngine) ChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec, temperature float64, maxTokens int) (*CompletionResult, error) {
	warnIfPlaintextRemote(e.BaseURL, e.APIKey)

	reqBody := openAIChatRequest{
		Model:       e.Model,
		Messages:    toOpenAIMessages(messages),
		Tools:       toOpenAITools(tools),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	backoffs := []time.Duration{0, time.Second, 2 * time.Second}
	var lastErr error

	for attempt, wait := range backoffs {
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return &CompletionResult{FinishReason: FinishCancelled}, ctx.Err()
			}
		}

		result, retryable, err := e.doRequest(ctx, reqBody)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		logging.EngineWarn("remote engine attempt %d failed, retrying: %v", attempt+1, err)
	}

	return nil, fmt.Errorf("remote engine: max retries exceeded: %w", lastErr)
}

func (e *RemoteOpenAIEngine) doRequest(ctx context.Context, reqBody openAIChatRequest) (*CompletionResult, bool, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("connect error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read error: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, true, fmt.Errorf("transient status %d: %s", resp.StatusCode, string(body))
	default:
		return nil, false, fmt.Errorf("remote engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, false, fmt.Errorf("parse chat response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, false, fmt.Errorf("remote engine error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, false, fmt.Errorf("remote engine returned no choices")
	}

	choice := chatResp.Choices[0]
	result := &CompletionResult{Text: strings.TrimSpace(choice.Message.Content)}

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				logging.EngineWarn("remote engine: malformed tool call arguments for %s: %v", tc.Function.Name, err)
				args = map[string]any{}
			}
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	switch {
	case len(result.ToolCalls) > 0:
		result.FinishReason = FinishToolCalls
	case choice.FinishReason == "length":
		result.FinishReason = FinishLength
	default:
		result.FinishReason = FinishStop
	}

	return result, false, nil
}
