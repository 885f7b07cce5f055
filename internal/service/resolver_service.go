package service

import (
	"context"
	"fmt"

	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// ResolverService loads tenant channel configuration for delivery. Relay URLs
// are re-validated against the allow-list on every resolution because the
// list may have changed since the config was written.
type ResolverService struct {
	store ports.TenantConfigStore
	allow *allowlist.List
}

func NewResolverService(store ports.TenantConfigStore, allow *allowlist.List) *ResolverService {
	return &ResolverService{store: store, allow: allow}
}

func (s *ResolverService) Resolve(ctx context.Context, tenantID string, channel model.Channel) (*model.TenantChannelConfig, error) {
	cfg, err := s.store.Get(ctx, tenantID, channel)
	if err != nil {
		return nil, err
	}
	if cfg.SelfRelayURL != "" {
		if err := s.allow.ValidateURL(cfg.SelfRelayURL); err != nil {
			return nil, fmt.Errorf("resolve relay url for tenant %s: %w", tenantID, err)
		}
	}
	return cfg, nil
}

func (s *ResolverService) PlanTier(ctx context.Context, tenantID string) (string, error) {
	return s.store.PlanTier(ctx, tenantID)
}
