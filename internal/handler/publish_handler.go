package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"github.com/postline-app/PublishDispatcher/internal/dto"
	"github.com/postline-app/PublishDispatcher/internal/service"
)

// maxInlineWait bounds how long POST /publish?wait= may hold the connection.
const maxInlineWait = 30 * time.Second

type PublishHandler struct {
	publish *service.PublishService
}

func NewPublishHandler(publish *service.PublishService) *PublishHandler {
	return &PublishHandler{publish: publish}
}

// Publish accepts a job and enqueues it. With ?wait=<duration> the handler
// holds the request open for up to that long and returns the settled result
// inline; otherwise it answers 202 immediately.
func (h *PublishHandler) Publish(c *ginext.Context) {
	var body dto.PublishRequest

	if err := c.BindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid body (parsing): %s", err.Error())})
		return
	}

	channels, err := body.ParseChannels()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid body (validating): %s", err.Error())})
		return
	}

	wait, err := parseWait(c.Query("wait"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid wait parameter: %s", err.Error())})
		return
	}

	job, err := h.publish.Submit(c.Request.Context(), body.Tenant, channels, body.Template, body.Data, body.IdempotencyKey)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't accept job: %s", err.Error())})
		return
	}

	if wait <= 0 {
		c.JSON(http.StatusAccepted, dto.ToAcceptedFromJob(job))
		return
	}

	result, err := h.publish.AwaitResult(c.Request.Context(), job.JobID, wait)
	if err != nil {
		if errors.Is(err, service.ErrResultNotReady) || errors.Is(err, context.Canceled) {
			c.JSON(http.StatusAccepted, dto.ToAcceptedFromJob(job))
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't read result: %s", err.Error())})
		return
	}
	c.JSON(http.StatusOK, result)
}

// JobResult serves GET /jobs/:id/result.
func (h *PublishHandler) JobResult(c *ginext.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": "missing job id"})
		return
	}

	result, err := h.publish.Result(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrResultNotReady) {
			c.AbortWithStatusJSON(http.StatusNotFound, ginext.H{"error": "result not ready"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't read result: %s", err.Error())})
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if wait < 0 {
		return 0, fmt.Errorf("wait must be positive")
	}
	if wait > maxInlineWait {
		wait = maxInlineWait
	}
	return wait, nil
}
