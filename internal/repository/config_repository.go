package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// ConfigRepository reads and writes per (tenant, channel) delivery
// configuration. Reads fail closed: a missing row surfaces as
// ErrChannelNotConfigured, never as a default-enabled config.
type ConfigRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewConfigRepository(db *dbpg.DB, strategy retry.Strategy) *ConfigRepository {
	return &ConfigRepository{db: db, strategy: strategy}
}

func (r *ConfigRepository) Get(ctx context.Context, tenantID string, channel model.Channel) (*model.TenantChannelConfig, error) {
	query := `SELECT tenant_id, channel, self_relay_url, managed_enabled, shard_ref
		FROM tenant_channel_configs
		WHERE tenant_id = $1 AND channel = $2`

	row, err := r.db.QueryRowWithRetry(ctx, r.strategy, query, tenantID, channel.String())
	if err != nil {
		return nil, fmt.Errorf("config: select (%s, %s): %w", tenantID, channel, err)
	}

	var (
		cfg      model.TenantChannelConfig
		rawChan  string
		relayURL sql.NullString
		shardRef sql.NullString
	)
	err = row.Scan(&cfg.TenantID, &rawChan, &relayURL, &cfg.ManagedEnabled, &shardRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("config: scan (%s, %s): %w", tenantID, channel, err)
	}

	cfg.Channel, err = model.ParseChannel(rawChan)
	if err != nil {
		return nil, fmt.Errorf("config: invalid channel in storage: %w", err)
	}
	cfg.SelfRelayURL = relayURL.String
	cfg.ShardRef = shardRef.String
	return &cfg, nil
}

func (r *ConfigRepository) Upsert(ctx context.Context, cfg *model.TenantChannelConfig) error {
	query := `INSERT INTO tenant_channel_configs (tenant_id, channel, self_relay_url, managed_enabled, shard_ref, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), now())
		ON CONFLICT (tenant_id, channel) DO UPDATE SET
			self_relay_url = EXCLUDED.self_relay_url,
			managed_enabled = EXCLUDED.managed_enabled,
			shard_ref = EXCLUDED.shard_ref,
			updated_at = now()`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		cfg.TenantID,
		cfg.Channel.String(),
		cfg.SelfRelayURL,
		cfg.ManagedEnabled,
		cfg.ShardRef,
	)
	if err != nil {
		return fmt.Errorf("config: upsert (%s, %s): %w", cfg.TenantID, cfg.Channel, err)
	}
	return nil
}

func (r *ConfigRepository) PlanTier(ctx context.Context, tenantID string) (string, error) {
	query := `SELECT plan_tier FROM tenants WHERE id = $1`

	row, err := r.db.QueryRowWithRetry(ctx, r.strategy, query, tenantID)
	if err != nil {
		return "", fmt.Errorf("config: select tenant %s: %w", tenantID, err)
	}

	var tier string
	err = row.Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTenantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("config: scan tenant %s: %w", tenantID, err)
	}
	return tier, nil
}
