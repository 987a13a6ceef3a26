package mapping

import (
	"context"
	"fmt"

	"stocksync_api/config"
	"stocksync_api/pkg/dbconnect"
	"stocksync_api/pkg/dbconnect/postgres"
)

// PostgresSource reads the mapping from a two-column table. Read-only:
// one SELECT per run.
type PostgresSource struct {
	connector dbconnect.Database
	table     string
}

func NewPostgresSource(cfg *config.PostgresConfig) *PostgresSource {
	table := cfg.Table
	if table == "" {
		table = "sku_barcodes"
	}
	return &PostgresSource{
		connector: postgres.NewPgConnector(cfg),
		table:     table,
	}
}

func (s *PostgresSource) Load(ctx context.Context) (map[string]string, error) {
	db, err := s.connector.Connect()
	if err != nil {
		return nil, fmt.Errorf("connecting to mapping database: %w", err)
	}

	query := fmt.Sprintf("SELECT sku, barcode FROM %s", s.table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying mapping table: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var sku, barcode string
		if err := rows.Scan(&sku, &barcode); err != nil {
			return nil, fmt.Errorf("scanning mapping row: %w", err)
		}
		m[sku] = barcode
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping rows: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("mapping table %s is empty", s.table)
	}
	return m, nil
}
