package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/model"
)

type allowAllQuota struct {
	canAttempt bool
	recorded   int
}

func (q *allowAllQuota) CanAttemptManaged(context.Context, string, model.Channel) (bool, error) {
	return q.canAttempt, nil
}

func (q *allowAllQuota) RecordAttempt(context.Context, string, model.Channel) (bool, error) {
	q.recorded++
	return q.canAttempt, nil
}

func testJob() *model.PublishJob {
	return &model.PublishJob{
		JobID:          "job-1",
		TenantID:       "t1",
		Channels:       []model.Channel{model.ChannelTelegram},
		Template:       "announce",
		IdempotencyKey: "key-1",
		Payload: map[string]any{
			"text":             "hello",
			"telegram_chat_id": "@tenant_channel",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestRelayForwardClassification(t *testing.T) {
	relay := NewRelayClient(time.Second, 100, 10)

	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "job-1", r.Header.Get("X-Job-Id"))
		require.Equal(t, "key-1", r.Header.Get("X-Idempotency-Key"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer okSrv.Close()
	require.NoError(t, relay.Forward(context.Background(), okSrv.URL, testJob()))

	failSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failSrv.Close()
	require.Error(t, relay.Forward(context.Background(), failSrv.URL, testJob()))
}

func TestDeliverPrefersSelfRelay(t *testing.T) {
	quota := &allowAllQuota{canAttempt: true}

	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer relaySrv.Close()

	a := NewTelegramAdapter(NewRelayClient(time.Second, 100, 10), quota, config.TelegramConfig{}, time.Second)
	res := a.Deliver(context.Background(), testJob(), &model.TenantChannelConfig{
		TenantID:       "t1",
		Channel:        model.ChannelTelegram,
		SelfRelayURL:   relaySrv.URL,
		ManagedEnabled: true,
	})

	require.Equal(t, model.StatusDelivered, res.Status)
	require.Zero(t, quota.recorded, "self-relay must not consume managed quota")
}

func TestDeliverManagedAndQuota(t *testing.T) {
	managedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer managedSrv.Close()

	relay := NewRelayClient(time.Second, 100, 10)

	quota := &allowAllQuota{canAttempt: true}
	a := NewTelegramAdapter(relay, quota, config.TelegramConfig{APIBaseURL: managedSrv.URL, BotToken: "token"}, time.Second)

	res := a.Deliver(context.Background(), testJob(), &model.TenantChannelConfig{ManagedEnabled: true})
	require.Equal(t, model.StatusDelivered, res.Status)
	require.Equal(t, 1, quota.recorded)

	// At cap: managed delivery is deferred, never attempted.
	over := &allowAllQuota{canAttempt: false}
	a = NewTelegramAdapter(relay, over, config.TelegramConfig{APIBaseURL: managedSrv.URL, BotToken: "token"}, time.Second)
	res = a.Deliver(context.Background(), testJob(), &model.TenantChannelConfig{ManagedEnabled: true})
	require.Equal(t, model.StatusQuotaDeferred, res.Status)
}

func TestDeliverNotConfigured(t *testing.T) {
	a := NewVKAdapter(NewRelayClient(time.Second, 100, 10), &allowAllQuota{canAttempt: true}, config.VKConfig{}, time.Second)
	res := a.Deliver(context.Background(), testJob(), &model.TenantChannelConfig{})
	require.Equal(t, model.StatusNotConfigured, res.Status)
}

func TestManagedFailureClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   model.AdapterStatus
	}{
		{"5xx is transient", http.StatusServiceUnavailable, "", model.StatusTransientFailure},
		{"429 is transient", http.StatusTooManyRequests, "", model.StatusTransientFailure},
		{"4xx is permanent", http.StatusForbidden, "", model.StatusPermanentFailure},
		{"malformed body is permanent", http.StatusOK, "{not-json", model.StatusPermanentFailure},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				w.Write([]byte(c.body))
			}))
			defer srv.Close()

			quota := &allowAllQuota{canAttempt: true}
			a := NewTelegramAdapter(NewRelayClient(time.Second, 100, 10), quota, config.TelegramConfig{APIBaseURL: srv.URL, BotToken: "token"}, time.Second)
			res := a.Deliver(context.Background(), testJob(), &model.TenantChannelConfig{ManagedEnabled: true})
			require.Equal(t, c.want, res.Status, c.name)
		})
	}
}

func TestVideoShardSelection(t *testing.T) {
	a := NewVideoAdapter(NewRelayClient(time.Second, 100, 10), &allowAllQuota{canAttempt: true}, config.VideoConfig{
		ShardTokens: []string{"tok-0", "tok-1", "tok-2"},
	}, time.Second)

	token, shard, err := a.shardToken("t1", "1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
	require.Equal(t, 1, shard)

	_, _, err = a.shardToken("t1", "9")
	require.Error(t, err)

	// No assignment: deterministic hash spread.
	tokenA, shardA, err := a.shardToken("tenant-a", "")
	require.NoError(t, err)
	tokenB, shardB, err2 := a.shardToken("tenant-a", "")
	require.NoError(t, err2)
	require.Equal(t, tokenA, tokenB)
	require.Equal(t, shardA, shardB)
}
