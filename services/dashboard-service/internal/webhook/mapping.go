package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stoik/leaddesk/internal/models"
)

// ErrNoRows means the webhook answered with JSON that holds no lead rows
var ErrNoRows = errors.New("webhook response carried no rows")

// aliases lists the accepted keys per lead field in priority order.
// Webhooks are not consistent about casing.
type aliases struct {
	company, website, status, scraped, email, contact, timestamp []string
}

// queueAliases serve the queue, scrape, results and email webhooks
var queueAliases = aliases{
	company:   []string{"companyName", "Company", "company"},
	website:   []string{"websiteUrl", "Website Base URL"},
	status:    []string{"scrappingStatus", "Status", "status"},
	scraped:   []string{"scrappedData", "Data", "data"},
	email:     []string{"generatedEmail", "Generated Email", "GeneratedEmail"},
	contact:   []string{"emailId", "Email"},
	timestamp: []string{"timestamp"},
}

// ingestAliases prefer the spreadsheet column names the ingest webhook
// echoes back from the uploaded file
var ingestAliases = aliases{
	company:   []string{"Company", "company", "companyName"},
	website:   []string{"Website Base URL", "websiteUrl"},
	status:    []string{"Status", "status", "scrappingStatus"},
	scraped:   queueAliases.scraped,
	email:     queueAliases.email,
	contact:   []string{"Email", "emailId"},
	timestamp: queueAliases.timestamp,
}

// shape selects which top-level JSON shapes a decode accepts
type shape int

const (
	shapeArray    shape = 1 << iota // [ {...}, ... ]
	shapeEnvelope                   // { "data": [ {...}, ... ] }
	shapeObject                     // { ... } as a single row
)

// MapLead converts one untyped webhook object into a lead. Company, website
// and status fall back to models.NotAvailable; optional fields stay empty,
// except scraped content which gets the sentinel when withScraped is set.
func MapLead(item map[string]any, now time.Time, withScraped bool) models.Lead {
	return mapLead(item, queueAliases, now, withScraped)
}

func mapLead(item map[string]any, keys aliases, now time.Time, withScraped bool) models.Lead {
	scrapedFallback := ""
	if withScraped {
		scrapedFallback = models.NotAvailable
	}
	lead := models.Lead{
		CompanyName:    pick(item, keys.company, models.NotAvailable),
		WebsiteURL:     pick(item, keys.website, models.NotAvailable),
		Status:         pick(item, keys.status, models.NotAvailable),
		ScrapedData:    pick(item, keys.scraped, scrapedFallback),
		GeneratedEmail: pick(item, keys.email, ""),
		ContactEmail:   pick(item, keys.contact, ""),
		Timestamp:      now,
	}
	if ts := pick(item, keys.timestamp, ""); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			lead.Timestamp = parsed
		}
	}
	return lead
}

// decodeRows maps a response body into leads according to the accepted shapes
func decodeRows(body []byte, accept shape, keys aliases, now time.Time, withScraped bool) ([]models.Lead, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrUpstream, err)
	}

	switch v := payload.(type) {
	case []any:
		if accept&shapeArray != 0 {
			return mapItems(v, keys, now, withScraped), nil
		}
	case map[string]any:
		if accept&shapeEnvelope != 0 {
			if data, ok := v["data"].([]any); ok {
				return mapItems(data, keys, now, withScraped), nil
			}
		}
		if accept&shapeObject != 0 {
			return []models.Lead{mapLead(v, keys, now, withScraped)}, nil
		}
	}
	return nil, ErrNoRows
}

func mapItems(items []any, keys aliases, now time.Time, withScraped bool) []models.Lead {
	leads := make([]models.Lead, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		leads = append(leads, mapLead(obj, keys, now, withScraped))
	}
	return leads
}

// pick returns the first alias holding a non-empty value
func pick(item map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		if s, ok := stringify(item[key]); ok {
			return s
		}
	}
	return fallback
}

// stringify renders a JSON value as text. Empty strings, zero, false and
// null count as absent.
func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return val, true
	case float64:
		if val == 0 {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		if !val {
			return "", false
		}
		return "true", true
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}
