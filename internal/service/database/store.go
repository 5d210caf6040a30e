package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kapu/netfolio/internal/domain"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// CardRecord is one persisted card with its placement on the page.
type CardRecord struct {
	RowID    string
	Position int
	Card     *domain.Card
}

type StoreConfig struct {
	Driver string
	DSN    string
}

// CatalogStore persists catalog cards in PostgreSQL or SQLite.
type CatalogStore struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

func OpenStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (*CatalogStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var driverName string
	switch cfg.Driver {
	case DriverPostgres:
		driverName = "postgres"
	case DriverSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// An in-memory database lives and dies with its single connection.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	logger.Info("Catalog database connected", zap.String("driver", cfg.Driver))

	return &CatalogStore{
		db:     db,
		driver: cfg.Driver,
		logger: logger,
	}, nil
}

func (s *CatalogStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *CatalogStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *CatalogStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS catalog_cards (
			id TEXT PRIMARY KEY,
			row_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_cards_row ON catalog_cards(row_id, position)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate catalog_cards: %w", err)
		}
	}
	return nil
}

// UpsertCards writes records in one transaction; existing ids are overwritten.
func (s *CatalogStore) UpsertCards(ctx context.Context, records []CardRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO catalog_cards (id, row_id, position, payload, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			row_id = excluded.row_id,
			position = excluded.position,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.Card == nil || rec.Card.ID == "" {
			return fmt.Errorf("card record in row %q has no id", rec.RowID)
		}
		payload, err := json.Marshal(rec.Card)
		if err != nil {
			return fmt.Errorf("marshal card %s: %w", rec.Card.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Card.ID, rec.RowID, rec.Position, string(payload)); err != nil {
			return fmt.Errorf("upsert card %s: %w", rec.Card.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.logger.Info("Catalog cards upserted", zap.Int("count", len(records)))
	return nil
}

// DeleteCardsExcept removes every card whose id is not in keep.
func (s *CatalogStore) DeleteCardsExcept(ctx context.Context, keep []string) (int64, error) {
	query := "DELETE FROM catalog_cards"
	args := make([]any, 0, len(keep))
	if len(keep) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		query += " WHERE id NOT IN (" + placeholders + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete stale cards: %w", err)
	}
	return res.RowsAffected()
}

// ListCards returns every card ordered by row and position.
func (s *CatalogStore) ListCards(ctx context.Context) ([]CardRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_id, position, payload FROM catalog_cards ORDER BY row_id, position, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var records []CardRecord
	for rows.Next() {
		var (
			rec     CardRecord
			payload string
		)
		if err := rows.Scan(&rec.RowID, &rec.Position, &payload); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		var card domain.Card
		if err := json.Unmarshal([]byte(payload), &card); err != nil {
			return nil, fmt.Errorf("decode card payload: %w", err)
		}
		rec.Card = &card
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return records, nil
}

func (s *CatalogStore) CountCards(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *CatalogStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordsFromRows flattens rows into records keeping each card's position.
func RecordsFromRows(rows []*domain.Row) []CardRecord {
	var records []CardRecord
	for _, row := range rows {
		for i, card := range row.Cards {
			records = append(records, CardRecord{RowID: row.ID, Position: i, Card: card})
		}
	}
	return records
}

// GroupByRow is the inverse of RecordsFromRows. records must be ordered by position.
func GroupByRow(records []CardRecord) map[string][]*domain.Card {
	grouped := make(map[string][]*domain.Card)
	for _, rec := range records {
		grouped[rec.RowID] = append(grouped[rec.RowID], rec.Card)
	}
	return grouped
}
