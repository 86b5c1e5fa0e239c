package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/api"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/auth"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/dashboard"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/db"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/events"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/storage"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/webhook"
)

var rootCmd = &cobra.Command{
	Use:   "leaddesk",
	Short: "Leaddesk dashboard service",
	Long:  "Uploads CSV lead lists, forwards them to the scraping webhooks and keeps the stored files editable",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		files, closeFiles, err := openFiles(ctx)
		if err != nil {
			return err
		}
		defer closeFiles()

		blobs, err := storage.NewOsStore(viper.GetString("storage.root"), viper.GetString("storage.bucket"))
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		log.Printf("Storing uploads in bucket %s under %s", blobs.Bucket(), viper.GetString("storage.root"))

		publisher, err := openPublisher()
		if err != nil {
			return err
		}
		defer publisher.Close()

		secret := viper.GetString("auth.secret")
		if secret == "" {
			return fmt.Errorf("auth.secret not configured")
		}
		authSvc := auth.NewService(secret, viper.GetDuration("auth.expiry"))

		policy := upload.Policy{
			MaxBytes: viper.GetInt64("upload.max_bytes"),
			CSVOnly:  viper.GetBool("upload.csv_only"),
		}
		service := dashboard.NewService(dashboard.Options{
			Webhooks: webhook.NewClient(webhook.ConfigFromViper()),
			Files:    files,
			Blobs:    blobs,
			Events:   publisher,
			Metrics:  dashboard.NewMetrics(prometheus.DefaultRegisterer),
			Policy:   policy,
		})

		server := &http.Server{
			Addr: viper.GetString("http.addr"),
			Handler: api.NewRouter(api.Config{
				Service:        service,
				Auth:           authSvc,
				Gatherer:       prometheus.DefaultGatherer,
				MaxUploadBytes: policy.MaxBytes,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			log.Printf("Starting dashboard service on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
			close(errChan)
		}()

		select {
		case <-sigChan:
			fmt.Println("\nShutting down gracefully...")

			shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				fmt.Println("Warning: HTTP server did not stop cleanly:", err)
			}

			if !service.Shutdown(10 * time.Second) {
				fmt.Println("Warning: Some webhook calls may not have completed")
			}
			return nil
		case err := <-errChan:
			return err
		}
	},
}

// openFiles returns the PostgreSQL repository when a database is configured
// and the in-memory one otherwise
func openFiles(ctx context.Context) (dashboard.FileRepository, func(), error) {
	if !db.Configured() {
		log.Println("database.url not set, keeping file metadata in memory")
		return db.NewMemoryFiles(), func() {}, nil
	}
	if err := db.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db.NewFiles(db.Pool), db.Close, nil
}

func openPublisher() (events.Publisher, error) {
	url := viper.GetString("amqp.url")
	if url == "" {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.Dial(url, events.DialOptions{
		Exchange: viper.GetString("amqp.exchange"),
		Attempts: viper.GetInt("amqp.dial_attempts"),
		Delay:    viper.GetDuration("amqp.dial_delay"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect event publisher: %w", err)
	}
	return publisher, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("http.addr", ":8081", "HTTP listen address")
	flags.String("database.url", "", "Database connection URL (in-memory metadata when empty)")
	flags.String("storage.root", "./data", "Directory holding the storage buckets")
	flags.String("storage.bucket", storage.DefaultBucket, "Bucket for uploaded CSV files")
	flags.String("webhook.ingest_url", "http://localhost:8080/webhook/ingest", "Webhook receiving uploaded files")
	flags.String("webhook.enqueue_url", "http://localhost:8080/webhook/queue", "Webhook managing the scrape queue")
	flags.String("webhook.scrape_url", "http://localhost:8080/webhook/scrape", "Webhook starting scraping")
	flags.String("webhook.results_url", "http://localhost:8080/webhook/results", "Webhook returning scraped results")
	flags.String("webhook.results_fallback_url", "", "Results webhook tried once when the primary one fails")
	flags.String("webhook.email_url", "http://localhost:8080/webhook/generate-email", "Webhook drafting emails")
	flags.Duration("webhook.timeout", webhook.DefaultTimeout, "Timeout for each webhook call")
	flags.Int64("upload.max_bytes", upload.DefaultMaxBytes, "Largest accepted upload in bytes")
	flags.Bool("upload.csv_only", true, "Only accept .csv files with text content")
	flags.String("auth.secret", "", "HS256 secret for bearer tokens")
	flags.Duration("auth.expiry", auth.DefaultExpiry, "Lifetime of minted tokens")
	flags.String("amqp.url", "", "Broker URL for dashboard events (disabled when empty)")
	flags.String("amqp.exchange", events.DefaultExchange, "Fanout exchange for dashboard events")
	flags.Int("amqp.dial_attempts", 5, "Broker connection attempts")
	flags.Duration("amqp.dial_delay", 10*time.Second, "Delay between broker connection attempts")

	// Bind flags to viper
	viper.BindPFlags(flags)

	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./services/dashboard-service")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
