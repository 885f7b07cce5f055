package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/fallback"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
	"github.com/postline-app/PublishDispatcher/internal/repository"
)

// Decision tells the queue consumer what to do with the delivery: ack it
// (the job reached a terminal aggregate state, Result is set), or requeue it
// after RetryDelay because some channel is still retrying.
type Decision struct {
	Ack        bool
	RetryDelay time.Duration
	Result     *model.JobResult
}

type Options struct {
	AdapterTimeout time.Duration
	ResultTTL      time.Duration
	// LoserWait bounds how long a worker that lost the reservation race waits
	// for the winner's result before proceeding independently.
	LoserWait time.Duration
}

// Dispatcher is the queue-consumer orchestration: dedup, per-channel fan-out,
// attempt recording, aggregation, commit.
type Dispatcher struct {
	ledger      ports.IdempotencyLedger
	resolver    ports.ConfigResolver
	adapters    map[model.Channel]ports.ChannelAdapter
	attempts    ports.AttemptStore
	deadLetters ports.DeadLetterStore
	results     ports.ResultStore
	policy      Policy
	opts        Options

	now func() time.Time
}

func New(
	ledger ports.IdempotencyLedger,
	resolver ports.ConfigResolver,
	adapters map[model.Channel]ports.ChannelAdapter,
	attempts ports.AttemptStore,
	deadLetters ports.DeadLetterStore,
	results ports.ResultStore,
	policy Policy,
	opts Options,
) *Dispatcher {
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 10 * time.Second
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 24 * time.Hour
	}
	if opts.LoserWait <= 0 {
		opts.LoserWait = 2 * time.Second
	}
	return &Dispatcher{
		ledger:      ledger,
		resolver:    resolver,
		adapters:    adapters,
		attempts:    attempts,
		deadLetters: deadLetters,
		results:     results,
		policy:      policy,
		opts:        opts,
		now:         time.Now,
	}
}

// channelCycle is the per-channel outcome of one delivery cycle.
type channelCycle struct {
	channel  model.Channel
	attempts int
	status   model.AdapterStatus
	reason   string
}

// HandleJob processes one (re)delivered job. Errors mean infrastructure
// trouble; the consumer should leave the message on the queue.
func (d *Dispatcher) HandleJob(ctx context.Context, job *model.PublishJob) (Decision, error) {
	log := zlog.Logger.With().Str("job_id", job.JobID).Str("tenant_id", job.TenantID).Logger()

	cached, reserved, err := d.ledger.CheckOrReserve(ctx, job.TenantID, job.IdempotencyKey)
	if err != nil {
		return Decision{}, fmt.Errorf("ledger check: %w", err)
	}
	if cached != nil {
		duplicatesSuppressedTotal.Inc()
		log.Info().Msg("duplicate suppressed, returning cached result")
		return Decision{Ack: true, Result: cached}, nil
	}
	if !reserved {
		// Another worker holds the job right now. Wait briefly for its
		// result; if nothing shows up, proceed independently. Processing the
		// job twice is acceptable, leaving it unresolved is not.
		res, err := d.ledger.AwaitResult(ctx, job.TenantID, job.IdempotencyKey, d.opts.LoserWait)
		if err != nil {
			return Decision{}, fmt.Errorf("ledger await: %w", err)
		}
		if res != nil {
			duplicatesSuppressedTotal.Inc()
			return Decision{Ack: true, Result: res}, nil
		}
		log.Warn().Msg("reservation race unresolved, proceeding independently")
	}

	history, err := d.attempts.History(ctx, job.JobID)
	if err != nil {
		d.release(ctx, job)
		return Decision{}, fmt.Errorf("load attempt history: %w", err)
	}

	cycles := make([]channelCycle, len(job.Channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range job.Channels {
		state, settled := history[ch]
		if settled && state.Outcome.Terminal() {
			// Settled in an earlier cycle; never reprocessed.
			cycles[i] = channelCycle{channel: ch, attempts: state.Attempts, status: state.Outcome, reason: state.Reason}
			continue
		}
		g.Go(func() error {
			cycles[i] = d.processChannel(gctx, job, ch, state.Attempts)
			return nil
		})
	}
	// Adapter goroutines never return errors; per-channel failures stay
	// per-channel.
	_ = g.Wait()

	var retryDelay time.Duration
	pending := 0
	for _, c := range cycles {
		if c.status.Terminal() {
			continue
		}
		pending++
		if delay := d.policy.Backoff(c.attempts); delay > retryDelay {
			retryDelay = delay
		}
	}

	if pending > 0 {
		d.release(ctx, job)
		log.Info().Int("pending_channels", pending).Dur("retry_delay", retryDelay).Msg("job rescheduled")
		return Decision{Ack: false, RetryDelay: retryDelay}, nil
	}

	result := d.buildResult(job, cycles)
	if err := d.results.Save(ctx, result); err != nil {
		d.release(ctx, job)
		return Decision{}, fmt.Errorf("save job result: %w", err)
	}
	if err := d.ledger.Commit(ctx, job.TenantID, job.IdempotencyKey, result, d.opts.ResultTTL); err != nil {
		return Decision{}, fmt.Errorf("ledger commit: %w", err)
	}

	jobsProcessedTotal.WithLabelValues(job.TenantID).Inc()
	log.Info().Int("channels", len(result.PerChannel)).Msg("job completed")
	return Decision{Ack: true, Result: result}, nil
}

// processChannel resolves config, delivers and records the attempt for one
// channel of the current cycle.
func (d *Dispatcher) processChannel(ctx context.Context, job *model.PublishJob, ch model.Channel, prevAttempts int) channelCycle {
	attemptNo := prevAttempts + 1
	res := d.attemptDelivery(ctx, job, ch)

	if res.Status == model.StatusTransientFailure && d.policy.Exhausted(attemptNo) {
		// The budget is spent; record the terminal state so redeliveries see
		// this channel as settled, and park it for the operators.
		d.deadLetter(ctx, job, ch, attemptNo, res.Reason)
		res = model.PermanentFailure("retry budget exhausted: " + res.Reason)
	} else if res.Status == model.StatusPermanentFailure {
		d.deadLetter(ctx, job, ch, attemptNo, res.Reason)
	}

	if res.Status == model.StatusQuotaDeferred {
		quotaDeferralsTotal.WithLabelValues(ch.String()).Inc()
	}
	channelAttemptsTotal.WithLabelValues(ch.String(), string(res.Status)).Inc()

	attempt := model.DeliveryAttempt{
		JobID:         job.JobID,
		TenantID:      job.TenantID,
		Channel:       ch,
		AttemptNumber: attemptNo,
		Outcome:       res.Status,
		Reason:        res.Reason,
		CreatedAt:     d.now().UTC(),
	}
	if err := d.attempts.Record(ctx, attempt); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", job.JobID).Str("channel", ch.String()).Msg("failed to record delivery attempt")
	}

	return channelCycle{channel: ch, attempts: attemptNo, status: res.Status, reason: res.Reason}
}

func (d *Dispatcher) attemptDelivery(ctx context.Context, job *model.PublishJob, ch model.Channel) model.AdapterResult {
	cfg, err := d.resolver.Resolve(ctx, job.TenantID, ch)
	switch {
	case errors.Is(err, repository.ErrChannelNotConfigured):
		return model.NotConfigured()
	case errors.Is(err, allowlist.ErrHostNotAllowed):
		// The allow-list changed since the config was written; reject the
		// delivery instead of silently forwarding.
		return model.PermanentFailure("relay host is no longer allow-listed")
	case err != nil:
		return model.TransientFailure(fmt.Sprintf("resolve config: %v", err))
	}

	ad, ok := d.adapters[ch]
	if !ok {
		return model.NotConfigured()
	}

	// A slow channel times out into a transient failure instead of stalling
	// its siblings.
	cctx, cancel := context.WithTimeout(ctx, d.opts.AdapterTimeout)
	defer cancel()
	return ad.Deliver(cctx, job, cfg)
}

func (d *Dispatcher) deadLetter(ctx context.Context, job *model.PublishJob, ch model.Channel, attempts int, lastError string) {
	entry := model.DeadLetterEntry{
		JobID:          job.JobID,
		TenantID:       job.TenantID,
		Channel:        ch,
		LastError:      lastError,
		Attempts:       attempts,
		DeadLetteredAt: d.now().UTC(),
	}
	if err := d.deadLetters.Add(ctx, entry); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", job.JobID).Str("channel", ch.String()).Msg("failed to write dead letter")
		return
	}
	deadLetteredTotal.WithLabelValues(ch.String()).Inc()
	zlog.Logger.Warn().Str("job_id", job.JobID).Str("channel", ch.String()).Str("last_error", lastError).Msg("channel dead-lettered")
}

func (d *Dispatcher) buildResult(job *model.PublishJob, cycles []channelCycle) *model.JobResult {
	perChannel := make([]model.ChannelResult, 0, len(cycles))
	for _, c := range cycles {
		cr := model.ChannelResult{Channel: c.channel}
		switch c.status {
		case model.StatusDelivered:
			cr.Outcome = model.OutcomeDelivered
		case model.StatusNotConfigured, model.StatusQuotaDeferred:
			cr.Outcome = model.OutcomeFallback
			cr.Fallback = fallback.Build(job, c.channel, fallback.FromStatus(c.status))
		default:
			cr.Outcome = model.OutcomeDeadLettered
			cr.Fallback = fallback.Build(job, c.channel, model.FallbackAdapterUnavailable)
		}
		perChannel = append(perChannel, cr)
	}
	return &model.JobResult{
		JobID:       job.JobID,
		TenantID:    job.TenantID,
		PerChannel:  perChannel,
		CompletedAt: d.now().UTC(),
	}
}

func (d *Dispatcher) release(ctx context.Context, job *model.PublishJob) {
	if err := d.ledger.Release(ctx, job.TenantID, job.IdempotencyKey); err != nil {
		zlog.Logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to release ledger reservation")
	}
}
