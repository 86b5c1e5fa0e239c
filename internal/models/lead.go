package models

import (
	"time"
)

// NotAvailable is the placeholder for lead fields a webhook did not return
const NotAvailable = "N/A"

// Scraping status labels as reported by the webhooks. The set is not closed:
// webhooks may return any label and it is kept verbatim.
const (
	StatusPending = "Scrap Pending"
	StatusBegin   = "Begin Scrapping"
	StatusDone    = "Scrap Done"
	StatusDrafted = "Email Drafted"
	StatusError   = "Error"
)

// Lead is a company/website row exchanged with the scraping webhooks.
// The JSON keys are the ones the webhooks already produce and consume.
type Lead struct {
	CompanyName    string    `json:"companyName"`
	WebsiteURL     string    `json:"websiteUrl"`
	Status         string    `json:"scrappingStatus"`
	ContactEmail   string    `json:"emailId,omitempty"`
	ScrapedData    string    `json:"scrappedData,omitempty"`
	GeneratedEmail string    `json:"generatedEmail,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// HasWebsite reports whether the lead carries a usable website URL
func (l Lead) HasWebsite() bool {
	return l.WebsiteURL != "" && l.WebsiteURL != NotAvailable
}
