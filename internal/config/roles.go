package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/muster/internal/core/policy"
)

// RolesFile is the on-disk shape of the signup category configuration.
type RolesFile struct {
	Categories []CategoryEntry `yaml:"categories"`
	Declined   DeclinedEntry   `yaml:"declined"`
}

// CategoryEntry configures one signup category.
type CategoryEntry struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Symbol   string   `yaml:"symbol"`
	Roles    []string `yaml:"roles"`
	Capacity *int     `yaml:"capacity"`
}

// DeclinedEntry configures the declined category.
type DeclinedEntry struct {
	Label  string `yaml:"label"`
	Symbol string `yaml:"symbol"`
}

// LoadRoles reads and validates the roles file at path.
func LoadRoles(path string) (*policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}
	return ParseRoles(data)
}

// ParseRoles decodes a roles document into a Policy.
func ParseRoles(data []byte) (*policy.Policy, error) {
	var f RolesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}

	categories := make([]policy.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		categories = append(categories, policy.Category{
			Key:      c.Key,
			Label:    c.Label,
			Symbol:   c.Symbol,
			Roles:    c.Roles,
			Capacity: c.Capacity,
		})
	}

	declined := policy.Category{Label: f.Declined.Label, Symbol: f.Declined.Symbol}
	if declined.Symbol == "" {
		declined.Symbol = "❌"
	}

	pol, err := policy.New(categories, declined)
	if err != nil {
		return nil, fmt.Errorf("invalid roles file: %w", err)
	}
	return pol, nil
}
