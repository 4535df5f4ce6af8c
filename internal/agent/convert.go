package agent

import (
	"github.com/Barent/natshell/internal/convo"
	"github.com/Barent/natshell/internal/engine"
	"github.com/Barent/natshell/internal/tools"
)

func toEngineMessages(messages []convo.Message) []engine.Message {
	out := make([]engine.Message, 0, len(messages))
	for _, m := range messages {
		em := engine.Message{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  toEngineToolCalls(m.ToolCalls),
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
		out = append(out, em)
	}
	return out
}

func toEngineToolCalls(calls []convo.ToolCall) []engine.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]engine.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, engine.ToolCall{ID: c.ID, Name: c.Name, Args: c.Arguments})
	}
	return out
}

func toConvoToolCalls(calls []engine.ToolCall) []convo.ToolCall {
	out := make([]convo.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, convo.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Args})
	}
	return out
}

func toEngineToolSpecs(all []*tools.Tool) []engine.ToolSpec {
	out := make([]engine.ToolSpec, 0, len(all))
	for _, t := range all {
		out = append(out, engine.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaToParameters(t.Schema),
		})
	}
	return out
}

// schemaToParameters renders a tools.ToolSchema as a JSON-Schema object map
// suitable for an engine.ToolSpec's Parameters field.
func schemaToParameters(schema tools.ToolSchema) map[string]any {
	properties := make(map[string]any, len(schema.Properties))
	for name, prop := range schema.Properties {
		p := map[string]any{
			"type":        prop.Type,
			"description": prop.Description,
		}
		if prop.Default != nil {
			p["default"] = prop.Default
		}
		if len(prop.Enum) > 0 {
			p["enum"] = prop.Enum
		}
		if prop.Items != nil {
			p["items"] = map[string]any{"type": prop.Items.Type}
		}
		properties[name] = p
	}

	required := schema.Required
	if required == nil {
		required = []string{}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
