package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/config"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/session"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema of a sqlite or postgres gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			switch cfg.Gateway.Kind {
			case config.GatewaySQLite, config.GatewayPostgres:
			default:
				return errors.ErrConfigInvalid("gateway.kind", fmt.Sprintf("%q has no database to migrate", cfg.Gateway.Kind))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), closeTimeout)
			defer cancel()
			d, err := session.OpenDB(ctx, cfg.Gateway)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database %s\n", d.Dialect(), cfg.Gateway.DSN)
			}
			return nil
		},
	}
}
