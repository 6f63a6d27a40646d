// Package relay implements the chat transport against the relay
// service that bridges the actual messenger account.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Client talks to the relay over HTTP. Sends are retried with
// exponential backoff; a circuit breaker keeps a dead relay from
// stalling every dispatch.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewClient creates a relay client.
func NewClient(baseURL, token string, logger zerolog.Logger) *Client {
	log := logger.With().Str("service", "relay").Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "relay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("relay breaker state changed")
		},
	})
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: breaker,
		logger:  log,
	}
}

type messageRequest struct {
	To      string `json:"to"`
	Text    string `json:"text"`
	Data    []byte `json:"data,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// Send delivers a text message to a seller.
func (c *Client) Send(ctx context.Context, sellerID, text string) error {
	return c.post(ctx, "/v1/messages", messageRequest{To: sellerID, Text: text}, nil)
}

// SendAttachment delivers an image with a caption to a seller.
func (c *Client) SendAttachment(ctx context.Context, sellerID string, data []byte, caption string) error {
	return c.post(ctx, "/v1/attachments", messageRequest{To: sellerID, Data: data, Caption: caption}, nil)
}

// FetchRecentAttachments pulls a seller's recent images, newest first.
func (c *Client) FetchRecentAttachments(ctx context.Context, sellerID string, limit int, since time.Time) ([][]byte, error) {
	q := url.Values{}
	q.Set("from", sellerID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("since", since.Format(time.RFC3339))

	var resp struct {
		Attachments [][]byte `json:"attachments"`
	}
	if err := c.get(ctx, "/v1/attachments?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Attachments, nil
}

// NotifyOperator sends a message to the operator's own chat.
func (c *Client) NotifyOperator(ctx context.Context, text string) error {
	return c.post(ctx, "/v1/operator/messages", messageRequest{Text: text}, nil)
}

// NotifyOperatorAttachment forwards an image to the operator.
func (c *Client) NotifyOperatorAttachment(ctx context.Context, data []byte, caption string) error {
	return c.post(ctx, "/v1/operator/attachments", messageRequest{Data: data, Caption: caption}, nil)
}

// RequestOutOfBandAlert asks the relay to ring the operator outside
// the chat (e.g. a call or push notification).
func (c *Client) RequestOutOfBandAlert(ctx context.Context, operatorID string) error {
	return c.post(ctx, "/v1/operator/alerts", map[string]string{"operatorId": operatorID}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		op := func() error {
			return c.doOnce(ctx, method, path, payload, out)
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		return nil, backoff.Retry(op, policy)
	})
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("relay returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Client errors will not heal on retry.
		return backoff.Permanent(fmt.Errorf("relay returned %d", resp.StatusCode))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(err)
		}
	}
	return nil
}
