// Package storage persists coupon images on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// LocalStore writes coupon images under a base directory, grouped by
// category and stamped with the purchase date.
type LocalStore struct {
	baseDir string
	logger  zerolog.Logger
}

// NewLocalStore creates a store rooted at baseDir.
func NewLocalStore(baseDir string, logger zerolog.Logger) *LocalStore {
	return &LocalStore{
		baseDir: baseDir,
		logger:  logger.With().Str("service", "storage").Logger(),
	}
}

// SaveCoupon writes the image and returns a reference to the stored file.
func (s *LocalStore) SaveCoupon(ctx context.Context, category negotiation.Category, data []byte, sellerName string) (string, error) {
	dir := filepath.Join(s.baseDir, strings.ToLower(string(category)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create coupon dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.jpg", time.Now().Format("2006-01-02-150405"), sanitize(sellerName))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write coupon: %w", err)
	}

	s.logger.Info().Str("path", path).Int("bytes", len(data)).Msg("coupon saved")
	return path, nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "seller"
	}
	return b.String()
}
