package fallback

import (
	"fmt"
	"strings"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// Build assembles the machine-readable "publish this manually" payload for a
// channel that could not be auto-delivered. The share hint is pre-formatted
// text the client can drop straight into a manual share action.
func Build(job *model.PublishJob, channel model.Channel, reason model.FallbackReason) *model.Fallback {
	return &model.Fallback{
		Reason:    reason,
		ShareHint: ShareHint(job, channel),
	}
}

// ShareHint renders the caller-facing share text from the job's template and
// payload. Unknown payload shapes degrade to whatever text is available.
func ShareHint(job *model.PublishJob, channel model.Channel) string {
	var parts []string

	if text := payloadString(job.Payload, "text"); text != "" {
		parts = append(parts, text)
	} else if title := payloadString(job.Payload, "title"); title != "" {
		parts = append(parts, title)
	}

	if link := payloadString(job.Payload, "link"); link != "" {
		parts = append(parts, link)
	}
	if media := payloadString(job.Payload, "media_url"); media != "" {
		parts = append(parts, media)
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Publish %q to %s manually", job.Template, channel)
	}
	return strings.Join(parts, "\n")
}

// FromStatus maps a terminal adapter status to the fallback reason the caller
// sees. Dead-lettered channels surface as adapter_unavailable.
func FromStatus(status model.AdapterStatus) model.FallbackReason {
	switch status {
	case model.StatusQuotaDeferred:
		return model.FallbackQuotaExceeded
	case model.StatusNotConfigured:
		return model.FallbackNotConfigured
	default:
		return model.FallbackAdapterUnavailable
	}
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
