package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/repository"
)

type fakeJobStore struct {
	created []*model.PublishJob
}

func (f *fakeJobStore) Create(_ context.Context, job *model.PublishJob) error {
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobStore) GetByIdempotencyKey(_ context.Context, tenantID, key string) (*model.PublishJob, error) {
	for _, job := range f.created {
		if job.TenantID == tenantID && job.IdempotencyKey == key {
			return job, nil
		}
	}
	return nil, repository.ErrJobNotFound
}

type fakePublisher struct {
	published []*model.PublishJob
}

func (f *fakePublisher) PublishJob(_ context.Context, job *model.PublishJob) error {
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) PublishRetry(_ context.Context, job *model.PublishJob, _ time.Duration) error {
	f.published = append(f.published, job)
	return nil
}

type fakeResultStore struct {
	results map[string]*model.JobResult
}

func (f *fakeResultStore) Save(_ context.Context, res *model.JobResult) error {
	f.results[res.JobID] = res
	return nil
}

func (f *fakeResultStore) Get(_ context.Context, jobID string) (*model.JobResult, error) {
	res, ok := f.results[jobID]
	if !ok {
		return nil, repository.ErrResultNotReady
	}
	return res, nil
}

type fakeConfigStore struct {
	configs map[string]*model.TenantChannelConfig
	tiers   map[string]string
}

func configKey(tenantID string, channel model.Channel) string {
	return tenantID + "/" + string(channel)
}

func (f *fakeConfigStore) Get(_ context.Context, tenantID string, channel model.Channel) (*model.TenantChannelConfig, error) {
	cfg, ok := f.configs[configKey(tenantID, channel)]
	if !ok {
		return nil, repository.ErrChannelNotConfigured
	}
	return cfg, nil
}

func (f *fakeConfigStore) Upsert(_ context.Context, cfg *model.TenantChannelConfig) error {
	if f.configs == nil {
		f.configs = map[string]*model.TenantChannelConfig{}
	}
	f.configs[configKey(cfg.TenantID, cfg.Channel)] = cfg
	return nil
}

func (f *fakeConfigStore) PlanTier(_ context.Context, tenantID string) (string, error) {
	tier, ok := f.tiers[tenantID]
	if !ok {
		return "", repository.ErrTenantNotFound
	}
	return tier, nil
}

func TestSubmitDerivesStableIdempotencyKey(t *testing.T) {
	jobs := &fakeJobStore{}
	pub := &fakePublisher{}
	svc := NewPublishService(jobs, pub, &fakeResultStore{results: map[string]*model.JobResult{}})

	payload := map[string]any{"text": "hello", "link": "https://example.com/p/1"}

	first, err := svc.Submit(context.Background(), "acme", []model.Channel{model.ChannelTelegram, model.ChannelVK}, "announcement", payload, "")
	require.NoError(t, err)

	// Same content with channels reordered derives the same key and maps
	// back to the job already accepted under it.
	second, err := svc.Submit(context.Background(), "acme", []model.Channel{model.ChannelVK, model.ChannelTelegram}, "announcement", payload, "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.IdempotencyKey)
	assert.Equal(t, first.IdempotencyKey, second.IdempotencyKey)
	assert.Equal(t, first.JobID, second.JobID)

	// Different content must derive a different key.
	third, err := svc.Submit(context.Background(), "acme", []model.Channel{model.ChannelTelegram, model.ChannelVK}, "announcement", map[string]any{"text": "bye"}, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.IdempotencyKey, third.IdempotencyKey)
	assert.NotEqual(t, first.JobID, third.JobID)

	// An explicit key is taken as is.
	fourth, err := svc.Submit(context.Background(), "acme", []model.Channel{model.ChannelVK}, "announcement", payload, "client-key-1")
	require.NoError(t, err)
	assert.Equal(t, "client-key-1", fourth.IdempotencyKey)

	assert.Len(t, jobs.created, 3, "resubmission must not create a new job row")
	assert.Len(t, pub.published, 3, "resubmission must not enqueue a second message")
}

func TestResubmissionKeepsResultReachable(t *testing.T) {
	jobs := &fakeJobStore{}
	results := &fakeResultStore{results: map[string]*model.JobResult{}}
	svc := NewPublishService(jobs, &fakePublisher{}, results)

	payload := map[string]any{"text": "hello"}
	first, err := svc.Submit(context.Background(), "acme", []model.Channel{model.ChannelVK}, "announcement", payload, "client-key-1")
	require.NoError(t, err)

	// The dispatcher settles the job.
	settled := &model.JobResult{
		JobID:      first.JobID,
		TenantID:   "acme",
		PerChannel: []model.ChannelResult{{Channel: model.ChannelVK, Outcome: model.OutcomeDelivered}},
	}
	require.NoError(t, results.Save(context.Background(), settled))

	// Resubmitting under the same key returns the original job, so the id
	// the caller polls with actually has a result behind it.
	second, err := svc.Submit(context.Background(), "acme", []model.Channel{model.ChannelVK}, "announcement", payload, "client-key-1")
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)

	got, err := svc.Result(context.Background(), second.JobID)
	require.NoError(t, err)
	assert.Equal(t, settled, got)
}

func TestAwaitResultReturnsOnceSettled(t *testing.T) {
	results := &fakeResultStore{results: map[string]*model.JobResult{}}
	svc := NewPublishService(&fakeJobStore{}, &fakePublisher{}, results)

	_, err := svc.AwaitResult(context.Background(), "job-1", 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrResultNotReady)

	want := &model.JobResult{JobID: "job-1", TenantID: "acme"}
	go func() {
		time.Sleep(120 * time.Millisecond)
		_ = results.Save(context.Background(), want)
	}()

	got, err := svc.AwaitResult(context.Background(), "job-1", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolverRejectsRevokedRelayHost(t *testing.T) {
	store := &fakeConfigStore{
		configs: map[string]*model.TenantChannelConfig{
			configKey("acme", model.ChannelTelegram): {
				TenantID:     "acme",
				Channel:      model.ChannelTelegram,
				SelfRelayURL: "https://hook.revoked.example/publish",
			},
		},
	}
	// The list no longer contains the host the config was written with.
	resolver := NewResolverService(store, allowlist.New([]string{"hook.relay.example"}))

	_, err := resolver.Resolve(context.Background(), "acme", model.ChannelTelegram)
	assert.ErrorIs(t, err, allowlist.ErrHostNotAllowed)
}

func TestResolverPassesThroughMissingConfig(t *testing.T) {
	resolver := NewResolverService(&fakeConfigStore{}, allowlist.New(nil))

	_, err := resolver.Resolve(context.Background(), "acme", model.ChannelVK)
	assert.ErrorIs(t, err, repository.ErrChannelNotConfigured)
}

func TestAdminRejectsDisallowedRelayURL(t *testing.T) {
	store := &fakeConfigStore{}
	admin := NewAdminService(store, &fakeDeadLetterStore{}, allowlist.New([]string{".relay.example"}))

	err := admin.SetChannelConfig(context.Background(), &model.TenantChannelConfig{
		TenantID:     "acme",
		Channel:      model.ChannelVK,
		SelfRelayURL: "https://hook.evil.example/publish",
	})
	assert.ErrorIs(t, err, allowlist.ErrHostNotAllowed)
	assert.Empty(t, store.configs)

	err = admin.SetChannelConfig(context.Background(), &model.TenantChannelConfig{
		TenantID:     "acme",
		Channel:      model.ChannelVK,
		SelfRelayURL: "https://eu.relay.example/publish",
	})
	require.NoError(t, err)

	got, err := admin.GetChannelConfig(context.Background(), "acme", model.ChannelVK)
	require.NoError(t, err)
	assert.Equal(t, "https://eu.relay.example/publish", got.SelfRelayURL)
}

type fakeDeadLetterStore struct {
	entries []model.DeadLetterEntry
}

func (f *fakeDeadLetterStore) Add(_ context.Context, entry model.DeadLetterEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeDeadLetterStore) ListByTenant(_ context.Context, tenantID string, limit int) ([]model.DeadLetterEntry, error) {
	var out []model.DeadLetterEntry
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
