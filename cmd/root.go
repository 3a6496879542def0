package cmd

import (
	"fmt"
	"os"

	"maturity_backend/internal/app"
	"maturity_backend/internal/config"
	"maturity_backend/pkg/logger"

	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "maturity-backend",
	Short: "Backend for the digital-maturity diagnostic",
	Long: `Serves the diagnostic quiz, computes maturity scores and assembles the
results page from Directus content. Without a subcommand it starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(false)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")
		return serve(migrate)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "configs", "Directory containing config.yaml")
	serveCmd.Flags().Bool("migrate", false, "Run database migrations on startup even when auto_migrate is off")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, nil
}

func serve(forceMigrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ForceMigrate = forceMigrate

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
	return nil
}
