package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// VideoAdapter publishes to the video-hosting channel. Managed credentials
// are sharded: the tenant's shard_ref picks a token, tenants without an
// assignment are spread by hash.
type VideoAdapter struct {
	base
	cfg        config.VideoConfig
	httpClient *http.Client
}

func NewVideoAdapter(relay *RelayClient, quota ports.QuotaRouter, cfg config.VideoConfig, timeout time.Duration) *VideoAdapter {
	return &VideoAdapter{
		base:       newBase(model.ChannelVideo, relay, quota),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *VideoAdapter) Deliver(ctx context.Context, job *model.PublishJob, cfg *model.TenantChannelConfig) model.AdapterResult {
	return a.deliver(ctx, job, cfg, func(ctx context.Context) model.AdapterResult {
		return a.upload(ctx, job, cfg.ShardRef)
	})
}

func (a *VideoAdapter) upload(ctx context.Context, job *model.PublishJob, shardRef string) model.AdapterResult {
	mediaURL, _ := job.Payload["media_url"].(string)
	if mediaURL == "" {
		return model.PermanentFailure("payload is missing media_url")
	}

	token, shard, err := a.shardToken(job.TenantID, shardRef)
	if err != nil {
		return model.PermanentFailure(err.Error())
	}

	title, _ := job.Payload["title"].(string)
	description, _ := job.Payload["text"].(string)
	body, err := json.Marshal(map[string]any{
		"title":       title,
		"description": description,
		"source_url":  mediaURL,
	})
	if err != nil {
		return model.PermanentFailure(fmt.Sprintf("marshal upload body: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBaseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return model.PermanentFailure(fmt.Sprintf("build upload request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Credential-Shard", strconv.Itoa(shard))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.TransientFailure(fmt.Sprintf("video upload request: %v", err))
	}
	defer resp.Body.Close()

	if status := classifyStatus(resp.StatusCode); status != model.StatusDelivered {
		return model.AdapterResult{Status: status, Reason: fmt.Sprintf("video host responded with status %d", resp.StatusCode)}
	}

	var apiResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil || apiResp.ID == "" {
		return model.PermanentFailure("malformed video host response")
	}
	return model.Delivered()
}

// shardToken resolves the managed credential set. An explicit shard_ref wins;
// otherwise the tenant hashes onto one of the configured shards.
func (a *VideoAdapter) shardToken(tenantID, shardRef string) (string, int, error) {
	if len(a.cfg.ShardTokens) == 0 {
		return "", 0, fmt.Errorf("no video credential shards configured")
	}

	if shardRef != "" {
		idx, err := strconv.Atoi(shardRef)
		if err != nil || idx < 0 || idx >= len(a.cfg.ShardTokens) {
			return "", 0, fmt.Errorf("invalid video shard_ref %q", shardRef)
		}
		return a.cfg.ShardTokens[idx], idx, nil
	}

	h := fnv.New32a()
	h.Write([]byte(tenantID))
	idx := int(h.Sum32() % uint32(len(a.cfg.ShardTokens)))
	return a.cfg.ShardTokens[idx], idx, nil
}
