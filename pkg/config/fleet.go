package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MachineSeed describes a machine to create or restock at startup.
type MachineSeed struct {
	ID    string `yaml:"id" json:"id"`
	Stock int    `yaml:"stock" json:"stock"`
}

// FleetFile represents the structure of fleet.yaml.
type FleetFile struct {
	Machines []MachineSeed `yaml:"machines" json:"machines"`
}

// LoadFleet reads a seed file (YAML, or JSON by extension).
// A missing file yields no seeds.
func LoadFleet(path string) ([]MachineSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read fleet file: %w", err)
	}

	var file FleetFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	seen := make(map[string]bool, len(file.Machines))
	for i, m := range file.Machines {
		if m.ID == "" {
			return nil, fmt.Errorf("machine #%d: id is required", i+1)
		}
		if m.Stock < 0 {
			return nil, fmt.Errorf("machine %s: stock must be >= 0, got %d", m.ID, m.Stock)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("machine %s: duplicate id", m.ID)
		}
		seen[m.ID] = true
	}
	return file.Machines, nil
}
