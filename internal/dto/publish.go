package dto

import (
	"fmt"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// PublishRequest is the body of POST /publish.
type PublishRequest struct {
	Tenant         string         `json:"tenant" binding:"required"`
	Channels       []string       `json:"channels" binding:"required"`
	Template       string         `json:"template" binding:"required"`
	Data           map[string]any `json:"data"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// ParseChannels validates and converts the channel names. Unknown channels
// are rejected up front so nothing half-known reaches the queue.
func (r *PublishRequest) ParseChannels() ([]model.Channel, error) {
	if len(r.Channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	seen := make(map[model.Channel]bool, len(r.Channels))
	out := make([]model.Channel, 0, len(r.Channels))
	for _, raw := range r.Channels {
		ch, err := model.ParseChannel(raw)
		if err != nil {
			return nil, err
		}
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out, nil
}

// PublishAccepted is returned when a job is queued without waiting for the
// outcome.
type PublishAccepted struct {
	JobID          string `json:"job_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
}

func ToAcceptedFromJob(job *model.PublishJob) *PublishAccepted {
	return &PublishAccepted{
		JobID:          job.JobID,
		IdempotencyKey: job.IdempotencyKey,
		Status:         "accepted",
	}
}
