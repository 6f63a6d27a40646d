package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

func TestSaveCoupon(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, zerolog.Nop())

	path, err := s.SaveCoupon(context.Background(), negotiation.CategoryLunch, []byte("jpeg-bytes"), "Ravi Kumar#1042")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, filepath.Join(dir, "lunch")))
	assert.True(t, strings.HasSuffix(path, ".jpg"))
	assert.Contains(t, filepath.Base(path), "ravi-kumar1042")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestSaveCoupon_CreatesCategoryDir(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, zerolog.Nop())

	_, err := s.SaveCoupon(context.Background(), negotiation.CategoryDinner, []byte("x"), "seller")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "dinner"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ravi Kumar", "ravi-kumar"},
		{"weird!!name??", "weirdname"},
		{"snake_case_name", "snake-case-name"},
		{"???", "seller"},
		{"", "seller"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitize(tt.in), tt.in)
	}
}
