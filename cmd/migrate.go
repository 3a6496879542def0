package cmd

import (
	"maturity_backend/internal/app"
	"maturity_backend/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.ForceMigrate = true
		cfg.MigrateOnly = true

		app.NewApp(cfg)
		logger.Log.Info("Database migration finished")
		logger.Log.Sync()
		return nil
	},
}
