// Package api exposes the dashboard over HTTP
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/auth"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/dashboard"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
)

// multipartOverhead is allowed on top of the file size limit for the form
// boundaries and the other fields
const multipartOverhead = 1 << 20

// Config wires the router
type Config struct {
	Service        *dashboard.Service
	Auth           *auth.Service
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
}

type handler struct {
	svc            *dashboard.Service
	maxUploadBytes int64
}

// NewRouter builds the gin engine with every route
func NewRouter(cfg Config) *gin.Engine {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = upload.DefaultMaxBytes
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{svc: cfg.Service, maxUploadBytes: cfg.MaxUploadBytes}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api", cfg.Auth.Middleware())
	{
		api.POST("/uploads", h.handleUpload)
		api.POST("/leads", h.handleManualLead)

		files := api.Group("/files")
		{
			files.GET("", h.handleListFiles)
			files.GET("/:id", h.handleGetFile)
			files.GET("/:id/download", h.handleDownloadFile)
			files.PATCH("/:id", h.handleRenameFile)
			files.DELETE("/:id", h.handleDeleteFile)
			files.GET("/:id/document", h.handleLoadDocument)
			files.PUT("/:id/document", h.handleSaveDocument)
			files.POST("/:id/document/edits", h.handleEditDocument)
		}

		tables := api.Group("/tables/:table")
		{
			tables.GET("", h.handleView)
			tables.POST("/rows/:index/toggle", h.handleToggle)
			tables.POST("/select-all", h.handleSelectAll)
			tables.POST("/toggle-all", h.handleToggleAll)
			tables.DELETE("/selection", h.handleClearSelection)
		}

		queue := api.Group("/queue")
		{
			queue.POST("", h.handleAddToQueue)
			queue.POST("/fetch", h.handleFetchQueue)
			queue.POST("/scrape", h.handleStartScraping)
			queue.POST("/refresh", h.handleRefreshResults)
			queue.POST("/generate-email", h.handleGenerateEmail)
		}
	}

	return r
}
