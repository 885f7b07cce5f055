package service

import (
	"context"
	"fmt"

	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// AdminService manages tenant channel configuration and exposes the
// dead-letter log for operators.
type AdminService struct {
	store       ports.TenantConfigStore
	deadLetters ports.DeadLetterStore
	allow       *allowlist.List
}

func NewAdminService(store ports.TenantConfigStore, deadLetters ports.DeadLetterStore, allow *allowlist.List) *AdminService {
	return &AdminService{store: store, deadLetters: deadLetters, allow: allow}
}

// SetChannelConfig validates and persists a tenant's channel configuration.
// Relay URLs are checked against the allow-list at write time; delivery
// re-checks them because the list can change afterwards.
func (s *AdminService) SetChannelConfig(ctx context.Context, cfg *model.TenantChannelConfig) error {
	if cfg.SelfRelayURL != "" {
		if err := s.allow.ValidateURL(cfg.SelfRelayURL); err != nil {
			return fmt.Errorf("relay url rejected: %w", err)
		}
	}
	return s.store.Upsert(ctx, cfg)
}

func (s *AdminService) GetChannelConfig(ctx context.Context, tenantID string, channel model.Channel) (*model.TenantChannelConfig, error) {
	return s.store.Get(ctx, tenantID, channel)
}

func (s *AdminService) DeadLetters(ctx context.Context, tenantID string, limit int) ([]model.DeadLetterEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.deadLetters.ListByTenant(ctx, tenantID, limit)
}
