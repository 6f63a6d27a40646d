package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_SetsAuthAndBody(t *testing.T) {
	var gotAuth string
	var gotBody messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", zerolog.Nop())
	require.NoError(t, c.Send(context.Background(), "seller-1", "hello"))

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "seller-1", gotBody.To)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", zerolog.Nop())
	require.NoError(t, c.Send(context.Background(), "seller-1", "hi"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDo_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", zerolog.Nop())
	err := c.Send(context.Background(), "seller-1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.Error(t, c.Send(ctx, "seller-1", "hi"))
	}

	err := c.Send(ctx, "seller-1", "hi")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestFetchRecentAttachments(t *testing.T) {
	since := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/attachments", r.URL.Path)
		assert.Equal(t, "seller-9", r.URL.Query().Get("from"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, since.Format(time.RFC3339), r.URL.Query().Get("since"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"attachments": [][]byte{[]byte("img-1"), []byte("img-2")},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", zerolog.Nop())
	got, err := c.FetchRecentAttachments(context.Background(), "seller-9", 3, since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("img-1"), got[0])
}
