package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrToolNotFound is returned by Invoke for names outside the catalog.
var ErrToolNotFound = errors.New("tool not found")

// Descriptor is the model-facing description of one tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// Spec returns the OpenAI-format wrapper for the descriptor.
func (d Descriptor) Spec() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  d.Parameters.Map(),
		},
	}
}

// Catalog is a fixed, ordered set of tools. Descriptors are built once at
// construction and never change afterwards, so a Catalog is safe for
// concurrent readers.
type Catalog struct {
	tools       []Tool
	descriptors []Descriptor
	index       map[string]int
	logger      *zap.Logger
}

// NewCatalog builds descriptors for tools in order. A repeated name replaces
// the earlier tool in its original position.
func NewCatalog(tools ...Tool) *Catalog {
	c := &Catalog{
		index:  make(map[string]int, len(tools)),
		logger: zap.NewNop(),
	}
	for _, t := range tools {
		if t == nil {
			continue
		}
		d := describeTool(t)
		if i, ok := c.index[d.Name]; ok {
			c.tools[i] = t
			c.descriptors[i] = d
			continue
		}
		c.index[d.Name] = len(c.tools)
		c.tools = append(c.tools, t)
		c.descriptors = append(c.descriptors, d)
	}
	return c
}

// WithLogger returns the catalog logging invocations to logger.
func (c *Catalog) WithLogger(logger *zap.Logger) *Catalog {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func describeTool(t Tool) Descriptor {
	d := Descriptor{Name: t.Name(), Description: t.Description()}
	if s, ok := t.(interface{ Schema() ParameterSchema }); ok {
		d.Parameters = s.Schema()
		return d
	}
	d.Parameters = schemaFromMap(t.Parameters())
	return d
}

// schemaFromMap reads a hand-written Parameters map back into a schema.
func schemaFromMap(m map[string]any) ParameterSchema {
	schema := ParameterSchema{Type: TypeObject}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		schema.Properties = make(map[string]Property, len(props))
		for name, raw := range props {
			p := Property{Type: TypeString}
			if pm, ok := raw.(map[string]any); ok {
				if typ, ok := pm["type"].(string); ok && typ != "" {
					p.Type = typ
				}
				p.Description, _ = pm["description"].(string)
			}
			schema.Properties[name] = p
		}
	}
	switch req := m["required"].(type) {
	case []string:
		schema.Required = append(schema.Required, req...)
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

// List returns the descriptors in registration order.
func (c *Catalog) List() []Descriptor {
	if c == nil {
		return nil
	}
	return append([]Descriptor(nil), c.descriptors...)
}

// Len reports how many tools the catalog holds.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tools)
}

// Names lists tool names in registration order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.descriptors))
	for i, d := range c.descriptors {
		names[i] = d.Name
	}
	return names
}

// Invoke calls the named tool and returns its result unchanged.
func (c *Catalog) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	i, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	start := time.Now()
	result, err := c.tools[i].Execute(ctx, args)
	if err != nil {
		c.logger.Warn("tool failed", zap.String("tool", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("tool succeeded", zap.String("tool", name), zap.Duration("took", time.Since(start)))
	return result, nil
}

// String renders every tool for debugging.
func (c *Catalog) String() string {
	if c == nil || len(c.descriptors) == 0 {
		return "(no tools)"
	}
	var b strings.Builder
	for i, d := range c.descriptors {
		fmt.Fprintf(&b, "[%d] Function: %s\n", i+1, d.Name)
		if desc := strings.TrimSpace(d.Description); desc != "" {
			fmt.Fprintf(&b, "    Description: %s\n", desc)
		}
		if len(d.Parameters.Properties) == 0 {
			b.WriteString("    Parameters: (none)\n\n")
			continue
		}
		b.WriteString("    Parameters:\n")
		required := make(map[string]bool, len(d.Parameters.Required))
		for _, r := range d.Parameters.Required {
			required[r] = true
		}
		for _, name := range c.paramOrder(i) {
			p := d.Parameters.Properties[name]
			flag := "optional"
			if required[name] {
				flag = "required"
			}
			fmt.Fprintf(&b, "      - %s (%s, %s)", name, p.Type, flag)
			if p.Description != "" {
				fmt.Fprintf(&b, ": %s", p.Description)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// paramOrder prefers declaration order when the tool exposes it.
func (c *Catalog) paramOrder(i int) []string {
	if p, ok := c.tools[i].(interface{ Params() []Param }); ok {
		params := p.Params()
		names := make([]string, 0, len(params))
		for _, param := range params {
			names = append(names, param.Name)
		}
		return names
	}
	names := make([]string, 0, len(c.descriptors[i].Parameters.Properties))
	for name := range c.descriptors[i].Parameters.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
