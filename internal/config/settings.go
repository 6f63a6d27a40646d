package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategorySettings is the negotiation book for one meal slot.
type CategorySettings struct {
	TargetPrice int      `yaml:"target_price"`
	Messes      []string `yaml:"messes"`
	// Window is a boolean expression over hour, minute and weekday
	// deciding when offers for this slot may be accepted.
	Window string `yaml:"window"`
	Paused bool   `yaml:"paused"`
}

// Settings is the operator-edited negotiation book.
type Settings struct {
	Categories    map[string]CategorySettings `yaml:"categories"`
	ExemptSellers []string                    `yaml:"exempt_sellers"`
}

// LoadSettings reads the YAML settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if len(s.Categories) == 0 {
		return nil, fmt.Errorf("settings file defines no categories")
	}
	for name, cs := range s.Categories {
		if cs.TargetPrice <= 0 {
			return nil, fmt.Errorf("category %s: target_price must be positive", name)
		}
	}
	return &s, nil
}
