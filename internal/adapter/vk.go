package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/fallback"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// vkErrTooManyRequests and vkErrInternal are the VK error codes worth
// retrying; everything else means the request itself is wrong.
const (
	vkErrTooManyRequests = 6
	vkErrInternal        = 10
)

// VKAdapter posts to a tenant's VK wall using the platform service token.
// The wall owner rides in the job payload ("vk_owner_id").
type VKAdapter struct {
	base
	cfg        config.VKConfig
	httpClient *http.Client
}

func NewVKAdapter(relay *RelayClient, quota ports.QuotaRouter, cfg config.VKConfig, timeout time.Duration) *VKAdapter {
	return &VKAdapter{
		base:       newBase(model.ChannelVK, relay, quota),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *VKAdapter) Deliver(ctx context.Context, job *model.PublishJob, cfg *model.TenantChannelConfig) model.AdapterResult {
	return a.deliver(ctx, job, cfg, func(ctx context.Context) model.AdapterResult {
		return a.wallPost(ctx, job)
	})
}

func (a *VKAdapter) wallPost(ctx context.Context, job *model.PublishJob) model.AdapterResult {
	ownerID, _ := job.Payload["vk_owner_id"].(string)
	if ownerID == "" {
		return model.PermanentFailure("payload is missing vk_owner_id")
	}

	form := url.Values{}
	form.Set("owner_id", ownerID)
	form.Set("message", fallback.ShareHint(job, model.ChannelVK))
	form.Set("access_token", a.cfg.AccessToken)
	form.Set("v", a.cfg.APIVersion)

	endpoint := fmt.Sprintf("%s/method/wall.post", a.cfg.APIBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return model.PermanentFailure(fmt.Sprintf("build wall.post request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.TransientFailure(fmt.Sprintf("vk request: %v", err))
	}
	defer resp.Body.Close()

	if status := classifyStatus(resp.StatusCode); status != model.StatusDelivered {
		return model.AdapterResult{Status: status, Reason: fmt.Sprintf("vk responded with status %d", resp.StatusCode)}
	}

	// VK reports errors in a 200 body.
	var apiResp struct {
		Error *struct {
			ErrorCode int    `json:"error_code"`
			ErrorMsg  string `json:"error_msg"`
		} `json:"error"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return model.PermanentFailure(fmt.Sprintf("malformed vk response: %v", err))
	}
	if apiResp.Error != nil {
		reason := fmt.Sprintf("vk error %d: %s", apiResp.Error.ErrorCode, apiResp.Error.ErrorMsg)
		if apiResp.Error.ErrorCode == vkErrTooManyRequests || apiResp.Error.ErrorCode == vkErrInternal {
			return model.TransientFailure(reason)
		}
		return model.PermanentFailure(reason)
	}
	return model.Delivered()
}
