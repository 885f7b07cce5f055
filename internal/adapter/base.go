package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wb-go/wbf/zlog"

	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// base carries the delivery-mode resolution every channel shares:
// self-relay first, then managed (under quota and behind a circuit breaker),
// else not configured.
type base struct {
	channel model.Channel
	relay   *RelayClient
	quota   ports.QuotaRouter
	breaker *gobreaker.CircuitBreaker
}

func newBase(channel model.Channel, relay *RelayClient, quota ports.QuotaRouter) base {
	return base{
		channel: channel,
		relay:   relay,
		quota:   quota,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    fmt.Sprintf("managed-%s", channel),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b base) Channel() model.Channel {
	return b.channel
}

// deliver runs the shared resolution order and delegates channel-specific
// managed delivery to managedFn.
func (b base) deliver(ctx context.Context, job *model.PublishJob, cfg *model.TenantChannelConfig, managedFn func(ctx context.Context) model.AdapterResult) model.AdapterResult {
	if cfg.SelfRelayURL != "" {
		if err := b.relay.Forward(ctx, cfg.SelfRelayURL, job); err != nil {
			return model.TransientFailure(fmt.Sprintf("self-relay: %v", err))
		}
		zlog.Logger.Debug().Str("job_id", job.JobID).Str("channel", b.channel.String()).Msg("delivered via self-relay")
		return model.Delivered()
	}

	if cfg.ManagedEnabled {
		ok, err := b.quota.CanAttemptManaged(ctx, job.TenantID, b.channel)
		if err != nil {
			return model.TransientFailure(fmt.Sprintf("quota check: %v", err))
		}
		if !ok {
			return model.QuotaDeferred()
		}
		ok, err = b.quota.RecordAttempt(ctx, job.TenantID, b.channel)
		if err != nil {
			return model.TransientFailure(fmt.Sprintf("quota reserve: %v", err))
		}
		if !ok {
			return model.QuotaDeferred()
		}
		return b.managed(ctx, managedFn)
	}

	return model.NotConfigured()
}

// managed runs the channel call through the breaker; transient failures count
// against it, everything else passes through untouched.
func (b base) managed(ctx context.Context, managedFn func(ctx context.Context) model.AdapterResult) model.AdapterResult {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		r := managedFn(ctx)
		if r.Status == model.StatusTransientFailure {
			return r, errors.New(r.Reason)
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.TransientFailure("managed delivery circuit is open")
	}
	if r, ok := res.(model.AdapterResult); ok {
		return r
	}
	return model.TransientFailure(fmt.Sprintf("managed delivery: %v", err))
}

// classifyStatus maps a managed API response code per the failure taxonomy:
// timeouts, throttling and 5xx retry; other 4xx mean the request shape or
// credentials are wrong and retrying cannot help.
func classifyStatus(code int) model.AdapterStatus {
	switch {
	case code >= 200 && code <= 299:
		return model.StatusDelivered
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return model.StatusTransientFailure
	default:
		return model.StatusPermanentFailure
	}
}
