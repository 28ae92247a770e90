package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/app/identity"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the catalog tables and the identity database if they do not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath, envPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		logger := config.NewLogger(os.Stderr, cfg.Observability)

		if cfg.Store.Mode == config.StoreModePostgres {
			_, closeStore, _, openErr := openStore(ctx, cfg, newObservability(logger, nil, cfg.Observability.ServiceName), true)
			if openErr != nil {
				return openErr
			}

			closeStore()
		}

		// opening the identity store creates its schema
		accounts, err := identity.Open(ctx, cfg.Identity.DatabasePath, identity.WithLogger(logger))
		if err != nil {
			return err
		}

		logger.Info(logMsgMigrated, logAttrStoreMode, cfg.Store.Mode, logAttrIdentityDB, cfg.Identity.DatabasePath)

		return accounts.Close()
	},
}
