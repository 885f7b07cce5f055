package ports

import (
	"context"
	"time"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// IdempotencyLedger deduplicates job processing across redeliveries and
// concurrent workers. Reservation must be atomic at the storage layer.
type IdempotencyLedger interface {
	// CheckOrReserve returns the cached result when one exists, otherwise
	// tries to reserve the key for this worker. cached == nil && !reserved
	// means another worker holds the reservation.
	CheckOrReserve(ctx context.Context, tenantID, key string) (cached *model.JobResult, reserved bool, err error)
	// AwaitResult is the race-loser path: poll for the winner's result for a
	// bounded time. Returns nil when nothing appeared in time.
	AwaitResult(ctx context.Context, tenantID, key string, wait time.Duration) (*model.JobResult, error)
	Commit(ctx context.Context, tenantID, key string, result *model.JobResult, ttl time.Duration) error
	Release(ctx context.Context, tenantID, key string) error
}

// ConfigResolver loads tenant delivery configuration. Missing config must
// resolve to ErrChannelNotConfigured, never to "managed enabled by default".
type ConfigResolver interface {
	Resolve(ctx context.Context, tenantID string, channel model.Channel) (*model.TenantChannelConfig, error)
	PlanTier(ctx context.Context, tenantID string) (string, error)
}

// TenantConfigStore is the persistence side of the admin configuration
// contract.
type TenantConfigStore interface {
	Get(ctx context.Context, tenantID string, channel model.Channel) (*model.TenantChannelConfig, error)
	Upsert(ctx context.Context, cfg *model.TenantChannelConfig) error
	PlanTier(ctx context.Context, tenantID string) (string, error)
}

// QuotaCounterStore holds rolling daily counters, bucketed by UTC date.
// Incr must be atomic at the storage layer.
type QuotaCounterStore interface {
	Count(ctx context.Context, tenantID string, channel model.Channel, bucket string) (int64, error)
	Incr(ctx context.Context, tenantID string, channel model.Channel, bucket string, ttl time.Duration) (int64, error)
}

// QuotaRouter decides whether managed delivery may be attempted.
type QuotaRouter interface {
	CanAttemptManaged(ctx context.Context, tenantID string, channel model.Channel) (bool, error)
	// RecordAttempt atomically consumes one quota unit; ok == false means the
	// cap was hit between the check and the increment and the caller must
	// defer to fallback.
	RecordAttempt(ctx context.Context, tenantID string, channel model.Channel) (ok bool, err error)
}

// AttemptStore is the append-only delivery attempt log.
type AttemptStore interface {
	Record(ctx context.Context, attempt model.DeliveryAttempt) error
	// History derives per-channel state (attempt count + latest outcome) for
	// a job, so redeliveries skip channels that are already settled.
	History(ctx context.Context, jobID string) (map[model.Channel]model.ChannelState, error)
}

type DeadLetterStore interface {
	Add(ctx context.Context, entry model.DeadLetterEntry) error
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.DeadLetterEntry, error)
}

type ResultStore interface {
	Save(ctx context.Context, result *model.JobResult) error
	Get(ctx context.Context, jobID string) (*model.JobResult, error)
}

// JobStore records accepted jobs. GetByIdempotencyKey must return
// ErrJobNotFound when no job was accepted under the pair, so a resubmission
// maps back to the job id the first submission answered with.
type JobStore interface {
	Create(ctx context.Context, job *model.PublishJob) error
	GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*model.PublishJob, error)
}

// JobPublisher enqueues jobs, either immediately or after a delay (the retry
/// path: the wait queue's per-message TTL drives redelivery, not in-process
// sleeps).
type JobPublisher interface {
	PublishJob(ctx context.Context, job *model.PublishJob) error
	PublishRetry(ctx context.Context, job *model.PublishJob, delay time.Duration) error
}

// ChannelAdapter delivers one job to one channel. Implementations must be
// safe for concurrent use; one adapter's failure never blocks another's.
type ChannelAdapter interface {
	Channel() model.Channel
	Deliver(ctx context.Context, job *model.PublishJob, cfg *model.TenantChannelConfig) model.AdapterResult
}
