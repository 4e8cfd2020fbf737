package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/database"
)

// NewMigrateCommand 只执行数据库迁移
func NewMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			// Init 内部完成迁移
			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)
			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}
