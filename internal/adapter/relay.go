package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// RelayClient forwards jobs to tenant-owned automation endpoints. One shared
// limiter keeps a single dispatcher instance from hammering relay providers
// when a large job fans out.
type RelayClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewRelayClient(timeout time.Duration, ratePerSec float64, burst int) *RelayClient {
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	if burst <= 0 {
		burst = 5
	}
	return &RelayClient{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Forward posts the job payload as-is to the tenant's relay URL. Any non-2xx
// response or network error is reported to the caller, which classifies it as
// transient.
func (c *RelayClient) Forward(ctx context.Context, relayURL string, job *model.PublishJob) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("relay limiter: %w", err)
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, relayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Job-Id", job.JobID)
	req.Header.Set("X-Idempotency-Key", job.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay responded with status %d", resp.StatusCode)
	}
	return nil
}
