package config

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/dataswitch/connectors"
	"github.com/redis/go-redis/v9"
)

// BuildSwitch constructs a dataswitch.Switch from a CatalogFile's
// connector declarations, dialing each concrete connector its type
// names.
func BuildSwitch(ctx context.Context, cf CatalogFile) (*dataswitch.Switch, error) {
	byName := make(map[string]dataswitch.DataConnector, len(cf.Connectors))
	for _, decl := range cf.Connectors {
		conn, err := buildConnector(ctx, decl)
		if err != nil {
			return nil, fmt.Errorf("config: connector %q: %w", decl.Source, err)
		}
		byName[decl.Source] = conn
	}
	return dataswitch.New(byName), nil
}

func buildConnector(ctx context.Context, decl ConnectorDecl) (dataswitch.DataConnector, error) {
	switch decl.Type {
	case "rest":
		baseURL, ok := decl.StringOption("base_url")
		if !ok {
			return nil, fmt.Errorf("rest connector requires options.base_url")
		}
		return connectors.NewRESTConnector(baseURL), nil

	case "redis":
		addr, ok := decl.StringOption("addr")
		if !ok {
			return nil, fmt.Errorf("redis connector requires options.addr")
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		return connectors.NewRedisConnector(client), nil

	case "postgres":
		dsn, ok := decl.StringOption("dsn")
		if !ok {
			return nil, fmt.Errorf("postgres connector requires options.dsn")
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres connector: connect: %w", err)
		}
		return connectors.NewPostgresConnector(pool), nil

	default:
		return nil, fmt.Errorf("unknown connector type %q", decl.Type)
	}
}
