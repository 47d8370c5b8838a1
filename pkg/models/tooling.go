package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ToolServer declares one auxiliary MCP-style server the deployed agent
// depends on, together with the delegated scope it requires.
type ToolServer struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Scope    string `yaml:"scope"`
	Audience string `yaml:"audience"` // resource application id
}

// ToolingManifest is the read-only external declaration driving which
// scopes the permission-grant sequence requests.
type ToolingManifest struct {
	Servers []ToolServer `yaml:"servers"`
}

// LoadToolingManifest reads and validates a tooling manifest file.
func LoadToolingManifest(path string) (*ToolingManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tooling manifest %s: %w", path, err)
	}

	var m ToolingManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse tooling manifest %s: %w", path, err)
	}

	for i, s := range m.Servers {
		if s.Name == "" {
			return nil, fmt.Errorf("tooling manifest server %d has no name", i)
		}
		if s.Scope == "" {
			return nil, fmt.Errorf("tooling manifest server %q has no scope", s.Name)
		}
		if s.Audience == "" {
			return nil, fmt.Errorf("tooling manifest server %q has no audience", s.Name)
		}
	}
	return &m, nil
}

// ServersByAudience groups servers by resource application id, in first-
// seen order. Grants are applied once per resource, not once per server.
func (m *ToolingManifest) ServersByAudience() ([]string, map[string][]ToolServer) {
	var order []string
	groups := make(map[string][]ToolServer)
	for _, s := range m.Servers {
		if _, ok := groups[s.Audience]; !ok {
			order = append(order, s.Audience)
		}
		groups[s.Audience] = append(groups[s.Audience], s)
	}
	return order, groups
}
