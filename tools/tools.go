// Tools module - tool definitions, argument helpers and result formatting
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Tool is a callable exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Primitive JSON schema types understood by completion endpoints.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Param is the declarative metadata of one tool parameter.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
}

// Property is one entry of ParameterSchema.Properties.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ParameterSchema is the JSON-schema-like object describing a tool's arguments.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Map returns the schema as a generic map, the shape Tool.Parameters reports.
func (s ParameterSchema) Map() map[string]any {
	out := map[string]any{"type": s.Type}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			prop := map[string]any{"type": p.Type}
			if p.Description != "" {
				prop["description"] = p.Description
			}
			props[name] = prop
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	return out
}

func buildSchema(params []Param) ParameterSchema {
	schema := ParameterSchema{Type: TypeObject}
	for _, p := range params {
		if schema.Properties == nil {
			schema.Properties = make(map[string]Property, len(params))
		}
		typ := p.Type
		if typ == "" {
			typ = TypeString
		}
		schema.Properties[p.Name] = Property{Type: typ, Description: p.Description}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

// FormatResult renders a tool result as text for a tool message.
func FormatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// ParseArgs parses JSON args
func ParseArgs(argsJSON string) (map[string]any, error) {
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// GetString gets a string arg
func GetString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt gets an int arg
func GetInt(args map[string]any, key string) int {
	if v, ok := args[key]; ok {
		switch f := v.(type) {
		case float64:
			return int(f)
		case int:
			return f
		case json.Number:
			i, _ := f.Int64()
			return int(i)
		case string:
			i, _ := strconv.Atoi(f)
			return i
		}
	}
	return 0
}

// GetBool gets a bool arg
func GetBool(args map[string]any, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Truncate long text; maxLen <= 0 leaves s whole
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "...\n(content truncated)"
}
