package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stoik/leaddesk/internal/models"
	"github.com/stoik/leaddesk/services/mock-server/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	scrapeDelay := 5 * time.Second
	if raw := os.Getenv("SCRAPE_DELAY"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			scrapeDelay = d
		}
	}

	store := mock.NewStore()
	stop := make(chan struct{})
	defer close(stop)
	go store.Run(time.Second, scrapeDelay, stop)

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting Leaddesk mock webhook server on %s (scrape delay %s)", addr, scrapeDelay)
	log.Fatal(http.ListenAndServe(addr, newRouter(store)))
}

func newRouter(store *mock.Store) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	hooks := r.Group("/webhook")
	{
		hooks.POST("/ingest", handleIngest)
		hooks.POST("/queue", func(c *gin.Context) {
			leads, ok := bindLeads(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": store.Enqueue(leads)})
		})
		hooks.GET("/queue", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.Queue())
		})
		hooks.POST("/scrape", func(c *gin.Context) {
			leads, ok := bindLeads(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, store.BeginScrape(leads))
		})
		hooks.POST("/results", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.Queue())
		})
		hooks.POST("/generate-email", func(c *gin.Context) {
			leads, ok := bindLeads(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, store.DraftEmails(leads))
		})
	}

	// Admin endpoints for testing
	r.DELETE("/admin/queue", func(c *gin.Context) {
		store.Reset()
		c.Status(http.StatusNoContent)
	})

	return r
}

func handleIngest(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	leads, err := mock.ParseCSV(f, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("Ingested %s (%d rows, triggered from %s)", fh.Filename, len(leads), c.PostForm("triggered_from"))
	c.JSON(http.StatusOK, leads)
}

// bindLeads accepts a JSON array of leads. An empty body or object counts
// as no leads.
func bindLeads(c *gin.Context) ([]models.Lead, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || strings.HasPrefix(trimmed, "{") {
		return nil, true
	}
	var leads []models.Lead
	if err := json.Unmarshal(body, &leads); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a JSON array of leads"})
		return nil, false
	}
	return leads, true
}
