package fallback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

func TestShareHint(t *testing.T) {
	job := &model.PublishJob{
		Template: "new-episode",
		Payload: map[string]any{
			"text":      "Episode 12 is out!",
			"link":      "https://example.com/e12",
			"media_url": "https://cdn.example.com/e12.mp4",
		},
	}
	hint := ShareHint(job, model.ChannelVK)
	require.Equal(t, "Episode 12 is out!\nhttps://example.com/e12\nhttps://cdn.example.com/e12.mp4", hint)

	empty := &model.PublishJob{Template: "new-episode"}
	require.Equal(t, `Publish "new-episode" to vk manually`, ShareHint(empty, model.ChannelVK))
}

func TestFromStatus(t *testing.T) {
	require.Equal(t, model.FallbackQuotaExceeded, FromStatus(model.StatusQuotaDeferred))
	require.Equal(t, model.FallbackNotConfigured, FromStatus(model.StatusNotConfigured))
	require.Equal(t, model.FallbackAdapterUnavailable, FromStatus(model.StatusPermanentFailure))
}
