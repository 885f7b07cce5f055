package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"

	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/dto"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/repository"
	"github.com/postline-app/PublishDispatcher/internal/service"
)

type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// SetChannelConfig serves PUT /admin/tenants/:tenant/channels/:channel.
func (h *AdminHandler) SetChannelConfig(c *ginext.Context) {
	tenantID := c.Param("tenant")
	channel, err := model.ParseChannel(c.Param("channel"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": err.Error()})
		return
	}

	var body dto.ChannelConfigRequest
	if err := c.BindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid body (parsing): %s", err.Error())})
		return
	}

	cfg := body.ToEntity(tenantID, channel)
	if err := h.admin.SetChannelConfig(c.Request.Context(), cfg); err != nil {
		if errors.Is(err, allowlist.ErrHostNotAllowed) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ginext.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't save config: %s", err.Error())})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// GetChannelConfig serves GET /admin/tenants/:tenant/channels/:channel.
func (h *AdminHandler) GetChannelConfig(c *ginext.Context) {
	tenantID := c.Param("tenant")
	channel, err := model.ParseChannel(c.Param("channel"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": err.Error()})
		return
	}

	cfg, err := h.admin.GetChannelConfig(c.Request.Context(), tenantID, channel)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotConfigured) {
			c.AbortWithStatusJSON(http.StatusNotFound, ginext.H{"error": "channel is not configured for tenant"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't load config: %s", err.Error())})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeadLetters serves GET /admin/dead-letters?tenant=...&limit=...
func (h *AdminHandler) DeadLetters(c *ginext.Context) {
	tenantID := c.Query("tenant")
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": "tenant query parameter is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ginext.H{"error": fmt.Sprintf("invalid limit: %s", err.Error())})
			return
		}
		limit = parsed
	}

	entries, err := h.admin.DeadLetters(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ginext.H{"error": fmt.Sprintf("couldn't list dead letters: %s", err.Error())})
		return
	}
	c.JSON(http.StatusOK, dto.DeadLetterList{Tenant: tenantID, Entries: entries})
}
