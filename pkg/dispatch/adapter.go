package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/types"
)

// DeliveryTimeout bounds one outbound webhook call.
const DeliveryTimeout = 30 * time.Second

// Payload is the JSON body a consumer's callback receives.
type Payload struct {
	ConsumerID string         `json:"consumerId"`
	Events     []*types.Event `json:"events"`
}

// DeliveryAdapter performs the outbound call for one consumer and batch.
// A nil return advances the consumer's position; any error counts as a
// failed attempt.
type DeliveryAdapter interface {
	Deliver(ctx context.Context, consumer *types.Consumer, batch []*types.Event) error
}

// HTTPAdapter delivers batches as HTTP POSTs: JSON body, JSON content type,
// X-Correlation-ID header, 30 s timeout, redirects not followed. Only a 2xx
// status is success.
type HTTPAdapter struct {
	client *http.Client
}

// NewHTTPAdapter creates the webhook delivery adapter.
func NewHTTPAdapter() *HTTPAdapter {
	return &HTTPAdapter{
		client: &http.Client{
			Timeout: DeliveryTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Deliver posts the batch to the consumer's callback.
func (a *HTTPAdapter) Deliver(ctx context.Context, consumer *types.Consumer, batch []*types.Event) error {
	body, err := json.Marshal(Payload{ConsumerID: consumer.ID, Events: batch})
	if err != nil {
		return fmt.Errorf("marshal delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, consumer.Callback, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	correlationID := consumer.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	req.Header.Set("X-Correlation-ID", correlationID)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delivery rejected with HTTP %d", resp.StatusCode)
	}
	return nil
}
