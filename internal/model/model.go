package model

import (
	"time"
)

// PublishJob is the unit of work on the dispatch queue. It is immutable once
// enqueued; the producer writes it, the dispatcher only reads it.
type PublishJob struct {
	JobID          string         `json:"job_id"`
	TenantID       string         `json:"tenant_id"`
	Channels       []Channel      `json:"channels"`
	Template       string         `json:"template"`
	Payload        map[string]any `json:"payload"`
	IdempotencyKey string         `json:"idempotency_key"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TenantChannelConfig is the per (tenant, channel) delivery configuration.
// Mutated only through the admin API; read-only to the dispatcher.
type TenantChannelConfig struct {
	TenantID       string  `json:"tenant_id" db:"tenant_id"`
	Channel        Channel `json:"channel" db:"channel"`
	SelfRelayURL   string  `json:"self_relay_url,omitempty" db:"self_relay_url"`
	ManagedEnabled bool    `json:"managed_enabled" db:"managed_enabled"`
	ShardRef       string  `json:"shard_ref,omitempty" db:"shard_ref"`
}

// AdapterStatus is the classification of one adapter invocation.
type AdapterStatus string

const (
	StatusDelivered        AdapterStatus = "delivered"
	StatusNotConfigured    AdapterStatus = "not_configured"
	StatusQuotaDeferred    AdapterStatus = "quota_deferred"
	StatusTransientFailure AdapterStatus = "transient_failure"
	StatusPermanentFailure AdapterStatus = "permanent_failure"
)

// Terminal reports whether the status ends the delivery cycle for a channel.
// Transient failures are the only non-terminal case; they keep the job on the
// queue until the retry budget runs out.
func (s AdapterStatus) Terminal() bool {
	return s != StatusTransientFailure
}

// AdapterResult is what every channel adapter returns from Deliver.
type AdapterResult struct {
	Status AdapterStatus
	Reason string
}

func Delivered() AdapterResult {
	return AdapterResult{Status: StatusDelivered}
}

func NotConfigured() AdapterResult {
	return AdapterResult{Status: StatusNotConfigured}
}

func QuotaDeferred() AdapterResult {
	return AdapterResult{Status: StatusQuotaDeferred}
}

func TransientFailure(reason string) AdapterResult {
	return AdapterResult{Status: StatusTransientFailure, Reason: reason}
}

func PermanentFailure(reason string) AdapterResult {
	return AdapterResult{Status: StatusPermanentFailure, Reason: reason}
}

// DeliveryAttempt is one append-only log entry per adapter invocation.
type DeliveryAttempt struct {
	JobID         string        `json:"job_id" db:"job_id"`
	TenantID      string        `json:"tenant_id" db:"tenant_id"`
	Channel       Channel       `json:"channel" db:"channel"`
	AttemptNumber int           `json:"attempt_number" db:"attempt_number"`
	Outcome       AdapterStatus `json:"outcome" db:"outcome"`
	Reason        string        `json:"reason,omitempty" db:"reason"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// ChannelState is the per-channel view derived from the attempt log. It is
// how a redelivered job knows which channels are already settled.
type ChannelState struct {
	Attempts int
	Outcome  AdapterStatus
	Reason   string
}

// DeadLetterEntry is written once per channel when the retry budget is
// exhausted or a permanent failure occurs. Never mutated afterwards.
type DeadLetterEntry struct {
	JobID          string    `json:"job_id" db:"job_id"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	Channel        Channel   `json:"channel" db:"channel"`
	LastError      string    `json:"last_error" db:"last_error"`
	Attempts       int       `json:"attempts" db:"attempts"`
	DeadLetteredAt time.Time `json:"dead_lettered_at" db:"dead_lettered_at"`
}

// FallbackReason tells the caller why automatic delivery did not happen.
type FallbackReason string

const (
	FallbackNotConfigured      FallbackReason = "not_configured"
	FallbackQuotaExceeded      FallbackReason = "quota_exceeded"
	FallbackAdapterUnavailable FallbackReason = "adapter_unavailable"
)

// Fallback instructs the caller to complete publishing manually.
type Fallback struct {
	Reason    FallbackReason `json:"reason"`
	ShareHint string         `json:"share_hint"`
}

// ChannelOutcome is the caller-facing terminal outcome of one channel.
type ChannelOutcome string

const (
	OutcomeDelivered    ChannelOutcome = "delivered"
	OutcomeFallback     ChannelOutcome = "fallback"
	OutcomeDeadLettered ChannelOutcome = "dead_lettered"
)

// ChannelResult pairs a channel with its terminal outcome.
type ChannelResult struct {
	Channel  Channel        `json:"channel"`
	Outcome  ChannelOutcome `json:"outcome"`
	Fallback *Fallback      `json:"fallback,omitempty"`
}

// JobResult is the aggregated per-channel outcome of a finished job. It is
// also the value cached by the idempotency ledger.
type JobResult struct {
	JobID       string          `json:"job_id"`
	TenantID    string          `json:"tenant_id"`
	PerChannel  []ChannelResult `json:"per_channel"`
	CompletedAt time.Time       `json:"completed_at"`
}
