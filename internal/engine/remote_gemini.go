package engine

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Barent/natshell/internal/logging"
)

// RemoteGeminiEngine posts chat-completions payloads to the Gemini API via
// the official SDK. Grounded on the gemini provider's content/tool
// conversion in the example pack (messageToGeminiContent, toGeminiTools,
// fromGeminiResponse).
type RemoteGeminiEngine struct {
	client *genai.Client
	model  string
}

// NewRemoteGeminiEngine constructs a client-backed engine for model.
func NewRemoteGeminiEngine(ctx context.Context, apiKey, model string) (*RemoteGeminiEngine, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &RemoteGeminiEngine{client: client, model: model}, nil
}

func (e *RemoteGeminiEngine) Name() string { return "remote" }

func toGeminiContents(messages []Message) (systemInstruction string, contents []*genai.Content) {
	for _, m := range messages {
		switch m.Role {
		case "system":
			if systemInstruction != "" {
				systemInstruction += "\n"
			}
			systemInstruction += m.Content
		case "user":
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
			})
		case "assistant":
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Args},
				})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case "tool":
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolName,
						Response: map[string]any{"content": m.Content},
					},
				}},
			})
		}
	}
	return systemInstruction, contents
}

func toGeminiTools(tools []ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toGeminiSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}
	props, _ := params["properties"].(map[string]any)
	if props != nil {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			propType, _ := prop["type"].(string)
			desc, _ := prop["description"].(string)
			schema.Properties[name] = &genai.Schema{
				Type:        toGeminiType(propType),
				Description: desc,
			}
		}
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	return schema
}

func toGeminiType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func (e *RemoteGeminiEngine) ChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec, temperature float64, maxTokens int) (*CompletionResult, error) {
	systemInstruction, contents := toGeminiContents(messages)

	temp := float32(temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(maxTokens),
		Tools:           toGeminiTools(tools),
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		}
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return &CompletionResult{FinishReason: FinishCancelled}, ctx.Err()
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]

	result := &CompletionResult{}
	var textParts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	result.Text = strings.Join(textParts, "")

	switch {
	case len(result.ToolCalls) > 0:
		result.FinishReason = FinishToolCalls
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		result.FinishReason = FinishLength
	default:
		result.FinishReason = FinishStop
	}

	logging.EngineDebug("gemini completion: finish_reason=%s tool_calls=%d", result.FinishReason, len(result.ToolCalls))
	return result, nil
}
