// Package dial resolves a domain.Connection to its connector.DB adapter.
// It is split out from internal/connector itself so the three engine
// adapters (which import connector) don't form an import cycle with the
// factory that selects among them.
package dial

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/connector/duckdb"
	"github.com/sparvidata/automation-core/internal/connector/postgresdb"
	"github.com/sparvidata/automation-core/internal/connector/snowflake"
	"github.com/sparvidata/automation-core/internal/domain"
)

// Open decodes conn.Credentials and opens the connector.DB for its
// ConnectionType.
func Open(ctx context.Context, conn *domain.Connection) (connector.DB, error) {
	var creds connector.Credentials
	if err := json.Unmarshal(conn.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("decode connection credentials: %w", err)
	}

	switch conn.Type {
	case domain.ConnectionPostgreSQL:
		return postgresdb.Open(ctx, creds)
	case domain.ConnectionDuckDB:
		return duckdb.Open(ctx, creds)
	case domain.ConnectionSnowflake:
		return snowflake.Open(ctx, creds)
	default:
		return nil, fmt.Errorf("unsupported connection type %q", conn.Type)
	}
}
