// Package tools provides the storefront tool contract and dispatcher.
package tools

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool names accepted by the dispatcher.
const (
	ToolFindProductNearby = "find_product_nearby"
	ToolReserveStockItem  = "reserve_stock_item"
)

// Spec represents a single tool contract entry.
type Spec struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	InputSchema map[string]any `yaml:"inputSchema,omitempty" json:"inputSchema,omitempty"`
}

type contract struct {
	Version string `yaml:"version"`
	Service string `yaml:"service"`
	Tools   []Spec `yaml:"tools"`
}

// Registry provides read-only access to parsed tools.
type Registry struct {
	contract contract
	byName   map[string]Spec
}

// NewRegistry parses the tool contract YAML and validates minimal invariants.
func NewRegistry(contractYAML []byte) (*Registry, error) {
	var parsed contract
	if err := yaml.Unmarshal(contractYAML, &parsed); err != nil {
		return nil, fmt.Errorf("decoding tool contract: %w", err)
	}
	if len(parsed.Tools) == 0 {
		return nil, fmt.Errorf("tool contract has no tools")
	}

	byName := make(map[string]Spec, len(parsed.Tools))
	for _, tool := range parsed.Tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, fmt.Errorf("tool contract contains empty tool name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("tool contract contains duplicate tool %q", name)
		}
		tool.Name = name
		byName[name] = tool
	}

	return &Registry{
		contract: parsed,
		byName:   byName,
	}, nil
}

// List returns all registered tools in contract order.
func (r *Registry) List() []Spec {
	items := make([]Spec, 0, len(r.contract.Tools))
	items = append(items, r.contract.Tools...)
	return items
}

// Lookup returns a tool by name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	tool, ok := r.byName[strings.TrimSpace(name)]
	return tool, ok
}
