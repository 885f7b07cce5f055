package dto

import (
	"github.com/postline-app/PublishDispatcher/internal/model"
)

// ChannelConfigRequest is the body of PUT /admin/tenants/:tenant/channels/:channel.
type ChannelConfigRequest struct {
	SelfRelayURL   string `json:"self_relay_url"`
	ManagedEnabled bool   `json:"managed_enabled"`
	ShardRef       string `json:"shard_ref"`
}

func (r *ChannelConfigRequest) ToEntity(tenantID string, channel model.Channel) *model.TenantChannelConfig {
	return &model.TenantChannelConfig{
		TenantID:       tenantID,
		Channel:        channel,
		SelfRelayURL:   r.SelfRelayURL,
		ManagedEnabled: r.ManagedEnabled,
		ShardRef:       r.ShardRef,
	}
}

// DeadLetterList wraps GET /admin/dead-letters so the shape stays stable when
// pagination fields are added.
type DeadLetterList struct {
	Tenant  string                  `json:"tenant"`
	Entries []model.DeadLetterEntry `json:"entries"`
}
