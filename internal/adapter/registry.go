package adapter

import (
	"time"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// NewRegistry wires one adapter per supported channel. The dispatcher selects
// by channel identifier; a channel with no adapter resolves to not configured.
func NewRegistry(quota ports.QuotaRouter, cfg config.AdaptersConfig, timeout time.Duration) map[model.Channel]ports.ChannelAdapter {
	relay := NewRelayClient(timeout, cfg.RelayRatePerSec, cfg.RelayBurst)

	return map[model.Channel]ports.ChannelAdapter{
		model.ChannelTelegram: NewTelegramAdapter(relay, quota, cfg.Telegram, timeout),
		model.ChannelVK:       NewVKAdapter(relay, quota, cfg.VK, timeout),
		model.ChannelVideo:    NewVideoAdapter(relay, quota, cfg.Video, timeout),
	}
}
