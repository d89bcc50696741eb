package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/featureplus/internal/config"
	"github.com/randalmurphal/featureplus/internal/db"
	"github.com/randalmurphal/featureplus/internal/db/driver"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway"
	"github.com/randalmurphal/featureplus/internal/gateway/httpgw"
	"github.com/randalmurphal/featureplus/internal/gateway/memgw"
	"github.com/randalmurphal/featureplus/internal/gateway/sqlgw"
)

// OpenGateway builds the remote cfg selects. SQL gateways are migrated
// before use. The returned closer is nil when there is nothing to release.
func OpenGateway(ctx context.Context, cfg config.GatewayConfig, logger *slog.Logger) (gateway.Gateway, io.Closer, error) {
	switch cfg.Kind {
	case config.GatewayMemory:
		return memgw.New(memgw.WithLogger(logger)), nil, nil

	case config.GatewaySQLite, config.GatewayPostgres:
		d, err := OpenDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return sqlgw.New(d, sqlgw.WithLogger(logger)), d, nil

	case config.GatewayHTTP:
		c, err := httpgw.New(cfg.BaseURL,
			httpgw.WithToken(cfg.Token),
			httpgw.WithTimeout(cfg.Timeout),
			httpgw.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	}
	return nil, nil, errors.ErrConfigInvalid("gateway.kind", fmt.Sprintf("unsupported gateway %q", cfg.Kind))
}

// OpenDB opens and migrates the database of a sqlite or postgres gateway.
func OpenDB(ctx context.Context, cfg config.GatewayConfig) (*db.DB, error) {
	dialect, err := driver.ParseDialect(cfg.Kind)
	if err != nil {
		return nil, errors.ErrConfigInvalid("gateway.kind", err.Error())
	}
	d, err := db.Open(dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := d.Migrate(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate %s database: %w", dialect, err)
	}
	return d, nil
}
