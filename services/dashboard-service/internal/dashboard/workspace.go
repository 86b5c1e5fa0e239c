package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/stoik/leaddesk/internal/models"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/events"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/leads"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/webhook"
)

// TableName identifies one of the two workspace tables
type TableName string

const (
	TableUploaded TableName = "uploaded"
	TableQueue    TableName = "queue"
)

// ParseTable validates a table name from a request path
func ParseTable(name string) (TableName, error) {
	switch TableName(name) {
	case TableUploaded, TableQueue:
		return TableName(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// Manual entry actions
const (
	ActionAdd           = "add"
	ActionScrape        = "scrape"
	ActionGenerateEmail = "generate-email"
)

// Upload is a file received from a client
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
	// TriggeredFrom is forwarded to the ingest webhook
	TriggeredFrom string
}

// ManualLead is a lead typed in by hand
type ManualLead struct {
	CompanyName  string `json:"companyName" validate:"required"`
	WebsiteURL   string `json:"websiteUrl" validate:"required,url"`
	ContactEmail string `json:"emailId" validate:"required,email"`
	Action       string `json:"action" validate:"omitempty,oneof=add scrape generate-email"`
}

// TableView is a filtered table snapshot
type TableView struct {
	Rows        []leads.Row `json:"rows"`
	Total       int         `json:"total"`
	Selected    int         `json:"selected"`
	AllSelected bool        `json:"all_selected"`
}

// Update describes what a webhook trigger did to the workspace
type Update struct {
	// Sent is the number of rows posted to the webhook
	Sent int `json:"sent"`
	// Rows is what the webhook returned, mapped to leads
	Rows []models.Lead `json:"rows"`
	// Replaced is false when the response carried no rows and the table
	// was left as it was
	Replaced bool `json:"replaced"`
}

func (ws *workspace) table(name TableName) (*leads.Table, error) {
	switch name {
	case TableUploaded:
		return ws.uploaded, nil
	case TableQueue:
		return ws.queue, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// withTable runs fn under the workspace lock
func (s *Service) withTable(owner uuid.UUID, name TableName, fn func(t *leads.Table) error) error {
	ws := s.workspace(owner)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	t, err := ws.table(name)
	if err != nil {
		return err
	}
	return fn(t)
}

// View returns the rows of a table passing the filter
func (s *Service) View(owner uuid.UUID, name TableName, f leads.Filter) (TableView, error) {
	var view TableView
	err := s.withTable(owner, name, func(t *leads.Table) error {
		view = TableView{
			Rows:        t.View(f),
			Total:       t.Len(),
			Selected:    len(t.Selected()),
			AllSelected: t.AllSelected(),
		}
		return nil
	})
	return view, err
}

// Toggle flips the selection of one row
func (s *Service) Toggle(owner uuid.UUID, name TableName, index int) error {
	return s.withTable(owner, name, func(t *leads.Table) error {
		if err := t.Toggle(index); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	})
}

// SelectAll selects every row of the table
func (s *Service) SelectAll(owner uuid.UUID, name TableName) error {
	return s.withTable(owner, name, func(t *leads.Table) error {
		t.SelectAll()
		return nil
	})
}

// ToggleAll selects exactly the visible rows, or clears the selection when
// every visible row is already selected
func (s *Service) ToggleAll(owner uuid.UUID, name TableName, f leads.Filter) error {
	return s.withTable(owner, name, func(t *leads.Table) error {
		t.ToggleAll(f)
		return nil
	})
}

// ClearSelection empties the selection of a table
func (s *Service) ClearSelection(owner uuid.UUID, name TableName) error {
	return s.withTable(owner, name, func(t *leads.Table) error {
		t.ClearSelection()
		return nil
	})
}

// IngestUpload validates a file, forwards it to the ingest webhook and
// prepends the returned rows to the uploaded table
func (s *Service) IngestUpload(ctx context.Context, owner uuid.UUID, up Upload) ([]models.Lead, error) {
	content, err := s.checkUpload(up)
	if err != nil {
		return nil, err
	}

	rows, err := s.call(webhook.EndpointIngest, func() ([]models.Lead, error) {
		return s.webhooks.Ingest(ctx, webhook.File{
			Name:          up.Name,
			Size:          up.Size,
			Content:       content,
			TriggeredFrom: up.TriggeredFrom,
			UploadedAt:    s.now(),
		})
	})
	if err != nil {
		log.Printf("Error sending %s to ingest webhook: %v", up.Name, err)
		return nil, err
	}
	s.metrics.addUploaded("webhook", up.Size)

	ws := s.workspace(owner)
	ws.mu.Lock()
	ws.uploaded.Prepend(rows...)
	ws.mu.Unlock()

	return rows, nil
}

// checkUpload applies the upload policy and returns a reader over the full
// content, sniffed head included
func (s *Service) checkUpload(up Upload) (io.Reader, error) {
	if up.Content == nil {
		return nil, fmt.Errorf("%w: no file content", upload.ErrEmptyFile)
	}
	head, err := upload.Sniff(up.Content)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(up.Name, up.Size, head); err != nil {
		return nil, err
	}
	return io.MultiReader(bytes.NewReader(head), up.Content), nil
}

// AddManualLead validates a hand-typed lead. The add action prepends it to
// the uploaded table; scrape and generate-email send it to the matching
// webhook and append the answer to the queue.
func (s *Service) AddManualLead(ctx context.Context, owner uuid.UUID, in ManualLead) (Update, error) {
	if err := s.validate.Struct(in); err != nil {
		return Update{}, invalid(err)
	}

	lead := models.Lead{
		CompanyName:  in.CompanyName,
		WebsiteURL:   in.WebsiteURL,
		ContactEmail: in.ContactEmail,
		Status:       models.StatusPending,
		Timestamp:    s.now(),
	}
	ws := s.workspace(owner)

	var (
		endpoint string
		send     func() ([]models.Lead, error)
	)
	switch in.Action {
	case "", ActionAdd:
		ws.mu.Lock()
		ws.uploaded.Prepend(lead)
		ws.mu.Unlock()
		return Update{Rows: []models.Lead{lead}, Replaced: true}, nil
	case ActionScrape:
		endpoint = webhook.EndpointScrape
		send = func() ([]models.Lead, error) { return s.webhooks.StartScraping(ctx, []models.Lead{lead}) }
	case ActionGenerateEmail:
		endpoint = webhook.EndpointEmail
		send = func() ([]models.Lead, error) { return s.webhooks.GenerateEmail(ctx, []models.Lead{lead}) }
	}

	rows, err := s.call(endpoint, send)
	if errors.Is(err, webhook.ErrNoRows) {
		return Update{Sent: 1}, nil
	}
	if err != nil {
		log.Printf("Error sending manual lead %s to %s webhook: %v", lead.CompanyName, endpoint, err)
		return Update{}, err
	}

	ws.mu.Lock()
	ws.queue.Merge(rows...)
	ws.mu.Unlock()

	if in.Action == ActionScrape {
		s.publish(ctx, events.Event{Type: events.LeadsScraping, OwnerID: owner, Count: 1})
	}
	return Update{Sent: 1, Rows: rows, Replaced: true}, nil
}

// selectedRows snapshots the selected rows of a table, failing when there are none
func (s *Service) selectedRows(owner uuid.UUID, name TableName) ([]models.Lead, error) {
	var rows []models.Lead
	err := s.withTable(owner, name, func(t *leads.Table) error {
		rows = t.SelectedRows()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNothingSelected
	}
	return rows, nil
}

// AddToQueue posts the selected uploaded rows to the enqueue webhook. An
// array or data envelope answer replaces the queue. The uploaded selection
// is cleared on any successful answer.
func (s *Service) AddToQueue(ctx context.Context, owner uuid.UUID) (Update, error) {
	selected, err := s.selectedRows(owner, TableUploaded)
	if err != nil {
		return Update{}, err
	}

	rows, err := s.call(webhook.EndpointEnqueue, func() ([]models.Lead, error) {
		return s.webhooks.Enqueue(ctx, selected)
	})
	replaced := true
	if errors.Is(err, webhook.ErrNoRows) {
		replaced, err = false, nil
	}
	if err != nil {
		log.Printf("Error adding %d rows to queue: %v", len(selected), err)
		return Update{}, err
	}

	ws := s.workspace(owner)
	ws.mu.Lock()
	if replaced {
		ws.queue.Replace(rows)
	}
	ws.uploaded.ClearSelection()
	ws.mu.Unlock()

	s.publish(ctx, events.Event{Type: events.LeadsQueued, OwnerID: owner, Count: len(selected)})
	return Update{Sent: len(selected), Rows: rows, Replaced: replaced}, nil
}

// FetchQueue reads the queue from the enqueue webhook. Any answer that is
// not an array empties the queue.
func (s *Service) FetchQueue(ctx context.Context, owner uuid.UUID) (Update, error) {
	rows, err := s.call(webhook.EndpointEnqueue, func() ([]models.Lead, error) {
		return s.webhooks.FetchQueue(ctx)
	})
	if errors.Is(err, webhook.ErrNoRows) {
		rows, err = []models.Lead{}, nil
	}
	if err != nil {
		log.Printf("Error fetching queue: %v", err)
		return Update{}, err
	}

	ws := s.workspace(owner)
	ws.mu.Lock()
	ws.queue.Replace(rows)
	ws.mu.Unlock()

	return Update{Rows: rows, Replaced: true}, nil
}

// StartScraping posts the selected queue rows to the start-scraping webhook.
// An array answer replaces the queue and clears its selection.
func (s *Service) StartScraping(ctx context.Context, owner uuid.UUID) (Update, error) {
	selected, err := s.selectedRows(owner, TableQueue)
	if err != nil {
		return Update{}, err
	}

	rows, err := s.call(webhook.EndpointScrape, func() ([]models.Lead, error) {
		return s.webhooks.StartScraping(ctx, selected)
	})
	if err != nil && !errors.Is(err, webhook.ErrNoRows) {
		log.Printf("Error starting scraping for %d rows: %v", len(selected), err)
		return Update{}, err
	}
	s.publish(ctx, events.Event{Type: events.LeadsScraping, OwnerID: owner, Count: len(selected)})
	if err != nil {
		return Update{Sent: len(selected)}, nil
	}

	ws := s.workspace(owner)
	ws.mu.Lock()
	ws.queue.Replace(rows)
	ws.mu.Unlock()

	return Update{Sent: len(selected), Rows: rows, Replaced: true}, nil
}

// RefreshResults posts the whole queue to the results webhook. An array
// answer replaces the queue; anything else leaves it untouched.
func (s *Service) RefreshResults(ctx context.Context, owner uuid.UUID) (Update, error) {
	var queued []models.Lead
	if err := s.withTable(owner, TableQueue, func(t *leads.Table) error {
		queued = t.Rows()
		return nil
	}); err != nil {
		return Update{}, err
	}

	rows, err := s.call(webhook.EndpointResults, func() ([]models.Lead, error) {
		return s.webhooks.FetchResults(ctx, queued)
	})
	if errors.Is(err, webhook.ErrNoRows) {
		return Update{Sent: len(queued)}, nil
	}
	if err != nil {
		log.Printf("Error fetching results: %v", err)
		return Update{}, err
	}

	ws := s.workspace(owner)
	ws.mu.Lock()
	ws.queue.Replace(rows)
	ws.mu.Unlock()

	return Update{Sent: len(queued), Rows: rows, Replaced: true}, nil
}

// GenerateEmail posts the selected queue rows to the email webhook. An array
// answer replaces the queue and clears its selection.
func (s *Service) GenerateEmail(ctx context.Context, owner uuid.UUID) (Update, error) {
	selected, err := s.selectedRows(owner, TableQueue)
	if err != nil {
		return Update{}, err
	}

	rows, err := s.call(webhook.EndpointEmail, func() ([]models.Lead, error) {
		return s.webhooks.GenerateEmail(ctx, selected)
	})
	if errors.Is(err, webhook.ErrNoRows) {
		return Update{Sent: len(selected)}, nil
	}
	if err != nil {
		log.Printf("Error generating emails for %d rows: %v", len(selected), err)
		return Update{}, err
	}

	ws := s.workspace(owner)
	ws.mu.Lock()
	ws.queue.Replace(rows)
	ws.mu.Unlock()

	return Update{Sent: len(selected), Rows: rows, Replaced: true}, nil
}
