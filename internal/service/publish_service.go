package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
	"github.com/postline-app/PublishDispatcher/internal/repository"
)

// ErrResultNotReady is surfaced to callers polling for a job that has not
// settled yet.
var ErrResultNotReady = repository.ErrResultNotReady

const resultPollInterval = 100 * time.Millisecond

// PublishService accepts publish requests, persists them and hands them to
// the queue. It never delivers anything itself.
type PublishService struct {
	jobs      ports.JobStore
	publisher ports.JobPublisher
	results   ports.ResultStore
}

func NewPublishService(jobs ports.JobStore, publisher ports.JobPublisher, results ports.ResultStore) *PublishService {
	return &PublishService{jobs: jobs, publisher: publisher, results: results}
}

// Submit registers a job and enqueues it. When the caller supplies no
// idempotency key one is derived from the request content, so byte-identical
// resubmissions map to the same key. A resubmission under an already-accepted
// (tenant, key) pair returns the original job instead of minting a new one,
// so its result stays reachable under the id the caller already holds.
func (s *PublishService) Submit(ctx context.Context, tenantID string, channels []model.Channel, template string, payload map[string]any, idempotencyKey string) (*model.PublishJob, error) {
	if idempotencyKey == "" {
		derived, err := deriveIdempotencyKey(tenantID, channels, template, payload)
		if err != nil {
			return nil, fmt.Errorf("derive idempotency key: %w", err)
		}
		idempotencyKey = derived
	}

	existing, err := s.jobs.GetByIdempotencyKey(ctx, tenantID, idempotencyKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrJobNotFound) {
		return nil, fmt.Errorf("look up job by idempotency key: %w", err)
	}

	job := &model.PublishJob{
		JobID:          uuid.NewString(),
		TenantID:       tenantID,
		Channels:       channels,
		Template:       template,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	if err := s.publisher.PublishJob(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", job.JobID, err)
	}
	return job, nil
}

// Result returns the settled outcome for a job, or ErrResultNotReady.
func (s *PublishService) Result(ctx context.Context, jobID string) (*model.JobResult, error) {
	return s.results.Get(ctx, jobID)
}

// AwaitResult polls for a job's result for up to wait. It returns
// ErrResultNotReady when the job has not settled within the window.
func (s *PublishService) AwaitResult(ctx context.Context, jobID string, wait time.Duration) (*model.JobResult, error) {
	deadline := time.Now().Add(wait)
	for {
		res, err := s.results.Get(ctx, jobID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, repository.ErrResultNotReady) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrResultNotReady
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(resultPollInterval):
		}
	}
}

// deriveIdempotencyKey hashes the canonical request content. Channel order
// and JSON map iteration order must not change the key, so channels are
// sorted and the payload is marshalled through encoding/json, which emits
// object keys sorted.
func deriveIdempotencyKey(tenantID string, channels []model.Channel, template string, payload map[string]any) (string, error) {
	sorted := make([]string, 0, len(channels))
	for _, ch := range channels {
		sorted = append(sorted, string(ch))
	}
	sort.Strings(sorted)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(template))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write(payloadJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}
