package webhook

import (
	"context"
	"io"
	"time"

	"github.com/stoik/leaddesk/internal/models"
)

// File is an upload forwarded to the ingest webhook
type File struct {
	Name          string
	Size          int64
	Content       io.Reader
	TriggeredFrom string
	UploadedAt    time.Time
}

// Client defines the external scraping/email webhooks.
// Every method returns ErrNoRows when the response body is valid JSON but
// not a shape that carries lead rows.
type Client interface {
	// Ingest sends a file as multipart form data and returns the parsed rows
	Ingest(ctx context.Context, file File) ([]models.Lead, error)

	// Enqueue adds leads to the scrape queue and returns the queue as reported back
	Enqueue(ctx context.Context, leads []models.Lead) ([]models.Lead, error)

	// FetchQueue reads the current scrape queue
	FetchQueue(ctx context.Context) ([]models.Lead, error)

	// StartScraping triggers scraping for the given leads
	StartScraping(ctx context.Context, leads []models.Lead) ([]models.Lead, error)

	// FetchResults posts the known queue and returns it with scraped content.
	// An empty queue is sent as an empty JSON object.
	FetchResults(ctx context.Context, leads []models.Lead) ([]models.Lead, error)

	// GenerateEmail asks for email drafts for the given leads
	GenerateEmail(ctx context.Context, leads []models.Lead) ([]models.Lead, error)
}
