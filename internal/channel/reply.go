package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/guides/internal/reliability"
)

// Replier delivers outbound messages keyed to an event's reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...Message) error
}

const (
	replyMaxAttempts = 3
	replyBackoffBase = 200 * time.Millisecond
	replyBackoffCap  = 2 * time.Second
)

// HTTPReplier posts replies to the messaging platform's reply endpoint.
// Rate-limit and server-side failures are retried with capped backoff; the
// reply token stays valid until the platform accepts the delivery.
type HTTPReplier struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPReplier(baseURL, accessToken string) *HTTPReplier {
	return &HTTPReplier{
		url:   strings.TrimSuffix(strings.TrimSpace(baseURL), "/") + "/message/reply",
		token: accessToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

func (r *HTTPReplier) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	if replyToken == "" {
		return fmt.Errorf("missing reply token")
	}
	if len(messages) == 0 {
		return fmt.Errorf("no messages to send")
	}

	payload, err := json.Marshal(replyRequest{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < replyMaxAttempts; attempt++ {
		if attempt > 0 {
			if !reliability.Sleep(ctx, reliability.Backoff(attempt-1, replyBackoffBase, replyBackoffCap)) {
				return ctx.Err()
			}
		}

		retryable, err := r.send(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

func (r *HTTPReplier) send(ctx context.Context, payload []byte) (retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create reply request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.token)

	res, err := r.client.Do(httpReq)
	if err != nil {
		return true, fmt.Errorf("send reply: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return reliability.IsRetryableStatus(res.StatusCode),
			fmt.Errorf("reply endpoint status %d: %s", res.StatusCode, string(body))
	}
	return false, nil
}
