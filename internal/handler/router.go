package handler

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"
)

func NewRouter(publishHandler *PublishHandler, adminHandler *AdminHandler) *ginext.Engine {
	router := ginext.New("release")
	router.Use(MetricsMiddleware)

	router.POST("/publish", publishHandler.Publish)
	router.GET("/jobs/:id/result", publishHandler.JobResult)

	router.PUT("/admin/tenants/:tenant/channels/:channel", adminHandler.SetChannelConfig)
	router.GET("/admin/tenants/:tenant/channels/:channel", adminHandler.GetChannelConfig)
	router.GET("/admin/dead-letters", adminHandler.DeadLetters)

	metricsHandler := promhttp.Handler()
	router.GET("/metrics", func(c *ginext.Context) {
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})

	return router
}
