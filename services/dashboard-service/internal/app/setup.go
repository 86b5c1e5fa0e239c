package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/auth"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/db"
)

// devOwnerID owns the records created through the setup token
var devOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the database schema and print a development token",
	Long:  "Creates the uploaded_files table and mints a bearer token for a fixed development owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		fmt.Println("Running migrations...")
		if err := db.Migrate(ctx); err != nil {
			return err
		}

		if viper.GetString("auth.secret") == "" {
			fmt.Println("✓ Database setup complete. Set auth.secret to mint a development token")
			return nil
		}

		token, err := auth.NewService(viper.GetString("auth.secret"), viper.GetDuration("auth.expiry")).GenerateToken(devOwnerID)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Database setup complete. Development owner: %s\n%s\n", devOwnerID, token)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for an owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("user")
		userID := devOwnerID
		if raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			userID = parsed
		}

		token, err := auth.NewService(viper.GetString("auth.secret"), viper.GetDuration("auth.expiry")).GenerateToken(userID)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "Owner UUID (development owner when empty)")
	rootCmd.AddCommand(setupCmd, tokenCmd)
}
