package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/fallback"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// TelegramAdapter publishes to a tenant's Telegram channel via the platform
// bot. The target chat rides in the job payload ("telegram_chat_id").
type TelegramAdapter struct {
	base
	cfg        config.TelegramConfig
	httpClient *http.Client
}

func NewTelegramAdapter(relay *RelayClient, quota ports.QuotaRouter, cfg config.TelegramConfig, timeout time.Duration) *TelegramAdapter {
	return &TelegramAdapter{
		base:       newBase(model.ChannelTelegram, relay, quota),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *TelegramAdapter) Deliver(ctx context.Context, job *model.PublishJob, cfg *model.TenantChannelConfig) model.AdapterResult {
	return a.deliver(ctx, job, cfg, func(ctx context.Context) model.AdapterResult {
		return a.sendMessage(ctx, job)
	})
}

func (a *TelegramAdapter) sendMessage(ctx context.Context, job *model.PublishJob) model.AdapterResult {
	chatID, _ := job.Payload["telegram_chat_id"].(string)
	if chatID == "" {
		return model.PermanentFailure("payload is missing telegram_chat_id")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    fallback.ShareHint(job, model.ChannelTelegram),
	})
	if err != nil {
		return model.PermanentFailure(fmt.Sprintf("marshal sendMessage body: %v", err))
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.cfg.APIBaseURL, a.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.PermanentFailure(fmt.Sprintf("build sendMessage request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.TransientFailure(fmt.Sprintf("telegram request: %v", err))
	}
	defer resp.Body.Close()

	if status := classifyStatus(resp.StatusCode); status != model.StatusDelivered {
		return model.AdapterResult{Status: status, Reason: fmt.Sprintf("telegram responded with status %d", resp.StatusCode)}
	}

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return model.PermanentFailure(fmt.Sprintf("malformed telegram response: %v", err))
	}
	if !apiResp.OK {
		return model.PermanentFailure(fmt.Sprintf("telegram rejected message: %s", apiResp.Description))
	}
	return model.Delivered()
}
