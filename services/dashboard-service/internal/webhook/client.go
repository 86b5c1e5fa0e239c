package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/viper"

	"github.com/stoik/leaddesk/internal/models"
)

// Endpoint names, used in errors and metrics
const (
	EndpointIngest  = "ingest"
	EndpointEnqueue = "enqueue"
	EndpointScrape  = "scrape"
	EndpointResults = "results"
	EndpointEmail   = "email"
)

// DefaultTimeout bounds every webhook call
const DefaultTimeout = 30 * time.Second

// tunnelWarningHeader suppresses the interstitial page of the tunnel the
// webhooks are usually exposed through
const tunnelWarningHeader = "ngrok-skip-browser-warning"

var (
	// ErrNotConfigured is returned when the URL for an endpoint is empty
	ErrNotConfigured = errors.New("webhook url not configured")
	// ErrUpstream wraps every failure caused by the webhook rather than by
	// the request
	ErrUpstream = errors.New("webhook failed")
)

// StatusError reports a non-2xx webhook response
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s webhook returned unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

// Config holds the webhook URLs
type Config struct {
	IngestURL          string
	EnqueueURL         string
	ScrapeURL          string
	ResultsURL         string
	ResultsFallbackURL string
	EmailURL           string
	Timeout            time.Duration
}

// ConfigFromViper reads the webhook.* keys
func ConfigFromViper() Config {
	timeout := viper.GetDuration("webhook.timeout")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Config{
		IngestURL:          viper.GetString("webhook.ingest_url"),
		EnqueueURL:         viper.GetString("webhook.enqueue_url"),
		ScrapeURL:          viper.GetString("webhook.scrape_url"),
		ResultsURL:         viper.GetString("webhook.results_url"),
		ResultsFallbackURL: viper.GetString("webhook.results_fallback_url"),
		EmailURL:           viper.GetString("webhook.email_url"),
		Timeout:            timeout,
	}
}

// HTTPClient implements Client over plain HTTP
type HTTPClient struct {
	cfg  Config
	http *resty.Client
	now  func() time.Time
}

// NewClient creates a webhook client
func NewClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPClient{
		cfg: cfg,
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader(tunnelWarningHeader, "true"),
		now: time.Now,
	}
}

// Ingest implements Client.Ingest
func (c *HTTPClient) Ingest(ctx context.Context, file File) ([]models.Lead, error) {
	if c.cfg.IngestURL == "" {
		return nil, fmt.Errorf("%s: %w", EndpointIngest, ErrNotConfigured)
	}
	uploadedAt := file.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = c.now()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", file.Name, file.Content).
		SetMultipartFormData(map[string]string{
			"timestamp":      uploadedAt.UTC().Format(time.RFC3339Nano),
			"triggered_from": file.TriggeredFrom,
			"filename":       file.Name,
			"filesize":       strconv.FormatInt(file.Size, 10),
		}).
		Post(c.cfg.IngestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send file to %s webhook: %w", ErrUpstream, EndpointIngest, err)
	}
	if err := checkStatus(EndpointIngest, resp); err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp.Body(), shapeArray|shapeObject, ingestAliases, c.now(), false)
	if errors.Is(err, ErrNoRows) {
		return nil, fmt.Errorf("%w: %s webhook answered without rows: %w", ErrUpstream, EndpointIngest, err)
	}
	return rows, err
}

// Enqueue implements Client.Enqueue
func (c *HTTPClient) Enqueue(ctx context.Context, leads []models.Lead) ([]models.Lead, error) {
	body, err := c.postJSON(ctx, EndpointEnqueue, c.cfg.EnqueueURL, leads)
	if err != nil {
		return nil, err
	}
	return decodeRows(body, shapeArray|shapeEnvelope, queueAliases, c.now(), false)
}

// FetchQueue implements Client.FetchQueue
func (c *HTTPClient) FetchQueue(ctx context.Context) ([]models.Lead, error) {
	if c.cfg.EnqueueURL == "" {
		return nil, fmt.Errorf("%s: %w", EndpointEnqueue, ErrNotConfigured)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		Get(c.cfg.EnqueueURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch queue: %w", ErrUpstream, err)
	}
	if err := checkStatus(EndpointEnqueue, resp); err != nil {
		return nil, err
	}
	return decodeRows(resp.Body(), shapeArray, queueAliases, c.now(), false)
}

// StartScraping implements Client.StartScraping
func (c *HTTPClient) StartScraping(ctx context.Context, leads []models.Lead) ([]models.Lead, error) {
	body, err := c.postJSON(ctx, EndpointScrape, c.cfg.ScrapeURL, leads)
	if err != nil {
		return nil, err
	}
	return decodeRows(body, shapeArray, queueAliases, c.now(), true)
}

// FetchResults implements Client.FetchResults. A non-2xx answer from the
// results URL is retried once against the fallback URL when one is set.
func (c *HTTPClient) FetchResults(ctx context.Context, leads []models.Lead) ([]models.Lead, error) {
	var payload any = leads
	if len(leads) == 0 {
		payload = map[string]any{}
	}

	body, err := c.postJSON(ctx, EndpointResults, c.cfg.ResultsURL, payload)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && c.cfg.ResultsFallbackURL != "" {
		log.Printf("Results webhook returned %d, retrying fallback url", statusErr.StatusCode)
		body, err = c.postJSON(ctx, EndpointResults, c.cfg.ResultsFallbackURL, payload)
	}
	if err != nil {
		return nil, err
	}
	return decodeRows(body, shapeArray, queueAliases, c.now(), true)
}

// GenerateEmail implements Client.GenerateEmail
func (c *HTTPClient) GenerateEmail(ctx context.Context, leads []models.Lead) ([]models.Lead, error) {
	body, err := c.postJSON(ctx, EndpointEmail, c.cfg.EmailURL, leads)
	if err != nil {
		return nil, err
	}
	return decodeRows(body, shapeArray, queueAliases, c.now(), true)
}

func (c *HTTPClient) postJSON(ctx context.Context, endpoint, url string, payload any) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrNotConfigured)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call %s webhook: %w", ErrUpstream, endpoint, err)
	}
	if err := checkStatus(endpoint, resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func checkStatus(endpoint string, resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	return &StatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       string(resp.Body()),
	}
}
