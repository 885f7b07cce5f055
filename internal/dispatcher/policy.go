package dispatcher

import (
	"time"

	"github.com/postline-app/PublishDispatcher/internal/config"
)

// Policy drives per-channel retry classification: exponential backoff for
// transient failures up to a capped delay and a bounded attempt budget.
// Permanent failures skip the budget and dead-letter immediately.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func NewPolicy(cfg config.DispatcherConfig) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = time.Second
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = time.Minute
	}
	return p
}

// Backoff returns the redelivery delay after the given 1-based attempt
// number: base doubled per attempt, capped.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}

// Exhausted reports whether a channel has used its whole retry budget.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
