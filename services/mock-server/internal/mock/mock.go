package mock

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/stoik/leaddesk/internal/models"
)

// ErrNoHeader is returned for CSV input without a header row
var ErrNoHeader = errors.New("csv has no header row")

var (
	industries = []string{"logistics", "fintech", "healthcare", "retail", "manufacturing", "edtech"}
	headcounts = []string{"1-10", "11-50", "51-200", "201-500", "500+"}
	openers    = []string{
		"I came across %s while researching companies in your space",
		"Your work at %s caught my attention",
		"I noticed %s has been growing quickly",
	}

	// CSV columns mapped onto lead fields, lower-cased
	companyColumns = []string{"company", "companyname", "company name", "name"}
	websiteColumns = []string{"website base url", "websiteurl", "website", "url", "domain"}
	emailColumns   = []string{"email", "emailid", "contact email"}
)

// Store is the in-memory scrape queue behind the emulated webhooks
type Store struct {
	mu    sync.RWMutex
	queue []models.Lead
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// ParseCSV turns an uploaded CSV into pending leads. Rows without a company
// or website column value keep models.NotAvailable.
func ParseCSV(r io.Reader, now time.Time) ([]models.Lead, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	company := columnIndex(header, companyColumns)
	website := columnIndex(header, websiteColumns)
	email := columnIndex(header, emailColumns)

	leads := make([]models.Lead, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(leads)+1, err)
		}
		lead := models.Lead{
			CompanyName:  field(record, company, models.NotAvailable),
			WebsiteURL:   field(record, website, models.NotAvailable),
			ContactEmail: field(record, email, ""),
			Status:       models.StatusPending,
			Timestamp:    now,
		}
		if lead.CompanyName == models.NotAvailable && lead.WebsiteURL == models.NotAvailable {
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// Enqueue adds leads to the queue, skipping websites already queued, and
// returns the whole queue
func (s *Store) Enqueue(leads []models.Lead) []models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lead := range leads {
		if s.indexOf(lead) >= 0 {
			continue
		}
		lead.Status = models.StatusPending
		lead.ScrapedData = ""
		lead.GeneratedEmail = ""
		lead.Timestamp = s.now()
		s.queue = append(s.queue, lead)
	}
	return s.snapshot()
}

// Queue returns a copy of the current queue
func (s *Store) Queue() []models.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// BeginScrape marks the matching queued leads as being scraped. Leads
// without a website are marked as errors.
func (s *Store) BeginScrape(leads []models.Lead) []models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lead := range leads {
		i := s.indexOf(lead)
		if i < 0 {
			continue
		}
		if !s.queue[i].HasWebsite() {
			s.queue[i].Status = models.StatusError
			continue
		}
		if s.queue[i].Status == models.StatusPending || s.queue[i].Status == models.StatusError {
			s.queue[i].Status = models.StatusBegin
			s.queue[i].Timestamp = s.now()
		}
	}
	return s.snapshot()
}

// CompleteScrapes finishes every lead that has been scraping for at least
// minAge and returns how many changed
func (s *Store) CompleteScrapes(minAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	done := 0
	for i := range s.queue {
		lead := &s.queue[i]
		if lead.Status != models.StatusBegin || now.Sub(lead.Timestamp) < minAge {
			continue
		}
		lead.Status = models.StatusDone
		lead.ScrapedData = fmt.Sprintf("%s (%s) is a %s company with %s employees",
			lead.CompanyName, lead.WebsiteURL,
			industries[rand.Intn(len(industries))], headcounts[rand.Intn(len(headcounts))])
		lead.Timestamp = now
		done++
	}
	return done
}

// DraftEmails writes an outreach email for every matching scraped lead and
// returns the whole queue
func (s *Store) DraftEmails(leads []models.Lead) []models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lead := range leads {
		i := s.indexOf(lead)
		if i < 0 || (s.queue[i].Status != models.StatusDone && s.queue[i].Status != models.StatusDrafted) {
			continue
		}
		q := &s.queue[i]
		opener := fmt.Sprintf(openers[rand.Intn(len(openers))], q.CompanyName)
		q.GeneratedEmail = fmt.Sprintf("Subject: Quick question for %s\n\nHi,\n\n%s. %s\n\nWould you be open to a short call next week?\n\nBest regards",
			q.CompanyName, opener, q.ScrapedData)
		q.Status = models.StatusDrafted
		q.Timestamp = s.now()
	}
	return s.snapshot()
}

// Reset empties the queue
func (s *Store) Reset() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// Run completes scrapes every tick until stop is closed
func (s *Store) Run(tick, minAge time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.CompleteScrapes(minAge)
		}
	}
}

// indexOf matches on website, or on company name when there is no website
func (s *Store) indexOf(lead models.Lead) int {
	for i, q := range s.queue {
		if lead.HasWebsite() {
			if strings.EqualFold(q.WebsiteURL, lead.WebsiteURL) {
				return i
			}
			continue
		}
		if !q.HasWebsite() && q.CompanyName == lead.CompanyName {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []models.Lead {
	out := make([]models.Lead, len(s.queue))
	copy(out, s.queue)
	return out
}

func columnIndex(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func field(record []string, i int, fallback string) string {
	if i < 0 || i >= len(record) {
		return fallback
	}
	if v := strings.TrimSpace(record[i]); v != "" {
		return v
	}
	return fallback
}
