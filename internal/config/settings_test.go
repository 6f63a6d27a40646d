package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeSettings(t, `
categories:
  LUNCH:
    target_price: 60
    messes: ["north mess"]
    window: "hour >= 9 && hour < 12"
  DINNER:
    target_price: 70
    paused: true
exempt_sellers:
  - roommate
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Len(t, s.Categories, 2)
	assert.Equal(t, 60, s.Categories["LUNCH"].TargetPrice)
	assert.Equal(t, []string{"north mess"}, s.Categories["LUNCH"].Messes)
	assert.True(t, s.Categories["DINNER"].Paused)
	assert.Equal(t, []string{"roommate"}, s.ExemptSellers)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no categories", "exempt_sellers: []"},
		{"zero price", "categories:\n  LUNCH:\n    target_price: 0"},
		{"bad yaml", "categories: [not a map"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeSettings(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
