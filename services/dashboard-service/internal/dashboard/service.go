// Package dashboard owns the per-owner lead workspaces and the stored CSV
// files, and drives the external webhooks on their behalf.
package dashboard

import (
	"context"
	"io"
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stoik/leaddesk/internal/models"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/db"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/events"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/leads"
	dashmodels "github.com/stoik/leaddesk/services/dashboard-service/internal/models"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/webhook"
)

// FileRepository persists uploaded file metadata
type FileRepository interface {
	Insert(ctx context.Context, f dashmodels.UploadedFile) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (dashmodels.UploadedFile, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]dashmodels.UploadedFile, error)
	UpdateContent(ctx context.Context, ownerID, id uuid.UUID, u db.ContentUpdate) error
	Rename(ctx context.Context, ownerID, id uuid.UUID, name string) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// BlobStore keeps raw file content
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, keys ...string) error
}

// Options wires a Service. Webhooks, Files and Blobs are required.
type Options struct {
	Webhooks webhook.Client
	Files    FileRepository
	Blobs    BlobStore
	Events   events.Publisher
	Metrics  *Metrics
	Policy   upload.Policy
}

type Service struct {
	webhooks webhook.Client
	files    FileRepository
	blobs    BlobStore
	events   events.Publisher
	metrics  *Metrics
	policy   upload.Policy
	validate *validator.Validate

	workspaces sync.Map // map[uuid.UUID]*workspace
	// in-flight webhook calls, drained on shutdown
	inflight sync.WaitGroup
	now      func() time.Time
}

// workspace is one owner's pair of result tables
type workspace struct {
	mu       sync.Mutex
	uploaded *leads.Table
	queue    *leads.Table
}

func NewService(opts Options) *Service {
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}
	if opts.Policy == (upload.Policy{}) {
		opts.Policy = upload.DefaultPolicy()
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Service{
		webhooks: opts.Webhooks,
		files:    opts.Files,
		blobs:    opts.Blobs,
		events:   opts.Events,
		metrics:  opts.Metrics,
		policy:   opts.Policy,
		validate: validate,
		now:      time.Now,
	}
}

// Shutdown waits for in-flight webhook calls to finish, up to timeout.
// Returns false if the timeout was reached.
func (s *Service) Shutdown(timeout time.Duration) bool {
	log.Printf("Shutting down dashboard service, waiting up to %v for webhook calls to complete...", timeout)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All webhook calls completed")
		return true
	case <-time.After(timeout):
		log.Printf("Shutdown timeout (%v) reached, some webhook calls may still be in progress", timeout)
		return false
	}
}

func (s *Service) workspace(owner uuid.UUID) *workspace {
	if ws, ok := s.workspaces.Load(owner); ok {
		return ws.(*workspace)
	}
	ws, _ := s.workspaces.LoadOrStore(owner, &workspace{
		uploaded: leads.NewTable(),
		queue:    leads.NewTable(),
	})
	return ws.(*workspace)
}

// call runs one webhook request, recording metrics and keeping shutdown
// informed. The workspace lock must not be held.
func (s *Service) call(endpoint string, fn func() ([]models.Lead, error)) ([]models.Lead, error) {
	s.inflight.Add(1)
	defer s.inflight.Done()

	start := time.Now()
	rows, err := fn()
	s.metrics.observeWebhook(endpoint, start, err)
	return rows, err
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if event.At.IsZero() {
		event.At = s.now().UTC()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish %s event: %v", event.Type, err)
	}
}
