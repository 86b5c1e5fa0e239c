package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
)

type uploadResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a CSV file to a running dashboard service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		target, _ := cmd.Flags().GetString("target")

		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		head, err := upload.Sniff(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := upload.DefaultPolicy().Check(filepath.Base(path), info.Size(), head); err != nil {
			return err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}

		progress := upload.StartProgress(upload.DefaultTick, func(percent int) {
			fmt.Fprintf(os.Stderr, "\rUploading %s... %3d%%", filepath.Base(path), percent)
		})

		var result uploadResponse
		resp, err := resty.New().
			SetTimeout(2*time.Minute).
			R().
			SetAuthToken(token).
			SetQueryParam("target", target).
			SetFileReader("file", filepath.Base(path), f).
			SetFormData(map[string]string{"triggered_from": "cli"}).
			SetResult(&result).
			SetError(&result).
			Post(server + "/api/uploads")
		if err != nil {
			progress.Abort()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("upload failed: %w", err)
		}
		if resp.IsError() {
			progress.Abort()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("upload failed with %s: %s", resp.Status(), result.Error)
		}

		progress.Complete()
		fmt.Fprintln(os.Stderr)
		fmt.Println(result.Message)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("server", "http://localhost:8081", "Dashboard service base URL")
	uploadCmd.Flags().String("token", os.Getenv("LEADDESK_TOKEN"), "Bearer token")
	uploadCmd.Flags().String("target", "webhook", "Upload target: webhook or storage")
	rootCmd.AddCommand(uploadCmd)
}
