package provider

import (
	"strings"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"forge/internal/llm"
)

// schemaToJSON converts a genai.Schema to a JSON Schema object. genai uses
// upper-case type names; the wire protocols expect lower case.
func schemaToJSON(schema *genai.Schema) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	result := make(map[string]any)
	if schema.Type != "" {
		result["type"] = strings.ToLower(string(schema.Type))
	}
	if schema.Description != "" {
		result["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		result["enum"] = schema.Enum
	}
	if len(schema.Properties) > 0 {
		props := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			props[name] = schemaToJSON(prop)
		}
		result["properties"] = props
	} else if schema.Type == genai.TypeObject {
		result["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}
	if schema.Items != nil {
		result["items"] = schemaToJSON(schema.Items)
	}
	return result
}

// toOllamaTools converts tool definitions to Ollama's typed tool format.
func toOllamaTools(defs []llm.ToolDefinition) []api.Tool {
	tools := make([]api.Tool, 0, len(defs))
	for _, def := range defs {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Properties: api.NewToolPropertiesMap(),
		}
		if def.Schema != nil {
			params.Required = def.Schema.Required
			for name, prop := range def.Schema.Properties {
				p := api.ToolProperty{Description: prop.Description}
				if prop.Type != "" {
					p.Type = api.PropertyType{strings.ToLower(string(prop.Type))}
				}
				if len(prop.Enum) > 0 {
					enum := make([]any, len(prop.Enum))
					for i, v := range prop.Enum {
						enum[i] = v
					}
					p.Enum = enum
				}
				params.Properties.Set(name, p)
			}
		}
		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
