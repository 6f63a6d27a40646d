package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	s := newSessionStore(time.Hour)

	token, expires, err := s.create()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, expires.After(time.Now().UTC()))

	assert.True(t, s.valid(token))
	assert.False(t, s.valid("not-a-token"))
}

func TestSessionStore_Expiry(t *testing.T) {
	s := newSessionStore(-time.Minute)

	token, _, err := s.create()
	require.NoError(t, err)

	assert.False(t, s.valid(token))
	// Expired sessions are dropped on the failed lookup.
	s.mu.Lock()
	_, ok := s.sessions[token]
	s.mu.Unlock()
	assert.False(t, ok)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"Bearer  abc123 ", "abc123"},
		{"Basic abc123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/v1/negotiations", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractToken(r), tt.header)
	}
}

func TestParseLimitOffset(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=9999", 100, 0},
		{"?limit=-1&offset=-3", 20, 0},
		{"?limit=abc", 20, 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/v1/outcomes"+tt.query, nil)
		limit, offset := parseLimitOffset(r, 20, 100)
		assert.Equal(t, tt.wantLimit, limit, tt.query)
		assert.Equal(t, tt.wantOffset, offset, tt.query)
	}
}
