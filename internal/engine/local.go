package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Barent/natshell/internal/logging"
)

// contextSizeHints maps a substring found in a model file name to its
// context window, used to auto-detect the window when it isn't configured.
var contextSizeHints = []struct {
	substr string
	nCtx   int
}{
	{"262144", 262144}, {"256k", 262144},
	{"32k", 32768},
	{"16k", 16384},
	{"8k", 8192}, {"8b", 8192},
	{"4k", 4096}, {"4b", 4096},
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
var toolCallBlock = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)

// LocalEngine wraps a bundled tokenizer + language-model runtime, addressed
// over its local completion endpoint (the same wire shape a llama.cpp-style
// server exposes on loopback). Tool schemas are inlined into the system
// prompt as text; the model is expected to emit invocations as
// <tool_call>{"name":...,"arguments":{...}}</tool_call> markers.
type LocalEngine struct {
	Endpoint   string
	ModelPath  string
	NCtx       int
	NGPULayers int
	MainGPU    int
	httpClient *http.Client

	toolCallSeq int
}

// NewLocalEngine returns a LocalEngine bound to a local completion server.
// If nCtx is 0, DetectContextWindow(modelPath) is used.
func NewLocalEngine(endpoint, modelPath string, nCtx, nGPULayers, mainGPU int) *LocalEngine {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8080"
	}
	if nCtx == 0 {
		nCtx = DetectContextWindow(modelPath)
	}
	return &LocalEngine{
		Endpoint:   endpoint,
		ModelPath:  modelPath,
		NCtx:       nCtx,
		NGPULayers: nGPULayers,
		MainGPU:    mainGPU,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// DetectContextWindow infers a context window from a model file name
// (e.g. "qwen2.5-8b-instruct.gguf" -> 8192), defaulting to 4096.
func DetectContextWindow(modelPath string) int {
	lower := strings.ToLower(modelPath)
	for _, hint := range contextSizeHints {
		if strings.Contains(lower, hint.substr) {
			return hint.nCtx
		}
	}
	return 4096
}

func (e *LocalEngine) Name() string { return "local" }

type localCompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type localCompletionResponse struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
	Error   string `json:"error,omitempty"`
}

// ChatCompletion flattens messages and an inlined tool catalogue into a
// single prompt, posts it to the local completion endpoint, then strips
// reasoning markers and parses any <tool_call> blocks out of the result.
func (e *LocalEngine) ChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec, temperature float64, maxTokens int) (*CompletionResult, error) {
	prompt := e.buildPrompt(messages, tools)

	reqBody := localCompletionRequest{
		Prompt:      prompt,
		NPredict:    maxTokens,
		Temperature: temperature,
		Stop:        []string{"<|user|>", "<|end|>"},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal local completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint+"/completion", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build local completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &CompletionResult{FinishReason: FinishCancelled}, ctx.Err()
		}
		return nil, fmt.Errorf("local engine request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read local engine response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var completion localCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("parse local engine response: %w", err)
	}
	if completion.Error != "" {
		return nil, fmt.Errorf("local engine error: %s", completion.Error)
	}

	text, toolCalls := e.extractToolCalls(completion.Content)

	finish := FinishStop
	if len(toolCalls) > 0 {
		finish = FinishToolCalls
	}
	return &CompletionResult{Text: text, ToolCalls: toolCalls, FinishReason: finish}, nil
}

func (e *LocalEngine) buildPrompt(messages []Message, tools []ToolSpec) string {
	var b strings.Builder
	if len(tools) > 0 {
		b.WriteString("Available tools (invoke by emitting <tool_call>{\"name\": \"...\", \"arguments\": {...}}</tool_call>):\n")
		for _, t := range tools {
			schema, _ := json.Marshal(t.Parameters)
			fmt.Fprintf(&b, "- %s: %s\n  schema: %s\n", t.Name, t.Description, schema)
		}
		b.WriteString("\n")
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			fmt.Fprintf(&b, "<|system|>\n%s\n", m.Content)
		case "user":
			fmt.Fprintf(&b, "<|user|>\n%s\n", m.Content)
		case "assistant":
			fmt.Fprintf(&b, "<|assistant|>\n%s\n", m.Content)
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Args)
				fmt.Fprintf(&b, "<tool_call>{\"name\": %q, \"arguments\": %s}</tool_call>\n", tc.Name, args)
			}
		case "tool":
			fmt.Fprintf(&b, "<|tool_result name=%q id=%q|>\n%s\n", m.ToolName, m.ToolCallID, m.Content)
		}
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}

// extractToolCalls strips <think> blocks, then parses each <tool_call>
// block as JSON into a ToolCall with a freshly assigned id.
func (e *LocalEngine) extractToolCalls(raw string) (string, []ToolCall) {
	stripped := thinkBlock.ReplaceAllString(raw, "")

	var calls []ToolCall
	matches := toolCallBlock.FindAllStringSubmatch(stripped, -1)
	for _, m := range matches {
		var parsed struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &parsed); err != nil {
			logging.EngineWarn("local engine: malformed tool_call block: %v", err)
			continue
		}
		e.toolCallSeq++
		calls = append(calls, ToolCall{
			ID:   "local-" + strconv.Itoa(e.toolCallSeq),
			Name: parsed.Name,
			Args: parsed.Arguments,
		})
	}

	text := strings.TrimSpace(toolCallBlock.ReplaceAllString(stripped, ""))
	return text, calls
}
