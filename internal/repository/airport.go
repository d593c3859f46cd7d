package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/airports"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

const (
	airportsTable = "airports"
	upsertBatch   = 200
)

var airportColumns = []string{"iata_code", "name", "city", "country_code", "kind"}

type AirportRepository interface {
	Migrate(ctx context.Context) error
	Upsert(ctx context.Context, list []entity.Airport) (int, error)
	ImportCSV(ctx context.Context, r io.Reader) (airports.ImportStats, error)
	Get(ctx context.Context, code string) (entity.Airport, error)
	Count(ctx context.Context) (int, error)
	Snapshot(ctx context.Context) (*airports.Static, error)
}

// AirportStore keeps the known-airport directory in SQL. Lookups during an
// extraction run go through a Snapshot, never through the database.
type AirportStore struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewAirportStore(drv *entsql.Driver, logger *slog.Logger) *AirportStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AirportStore{drv: drv, logger: logger}
}

func (s *AirportStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// airportsDDL is valid for both SQLite and Postgres. ent's builders cover the
// queries; the table itself is plain DDL since no codegen schema backs it.
const airportsDDL = `CREATE TABLE IF NOT EXISTS ` + airportsTable + ` (
	iata_code    varchar(3)   NOT NULL PRIMARY KEY,
	name         varchar(255) NOT NULL DEFAULT '',
	city         varchar(255) NOT NULL DEFAULT '',
	country_code varchar(2)   NOT NULL,
	kind         varchar(32)  NOT NULL DEFAULT ''
)`

// Migrate creates the airports table when missing.
func (s *AirportStore) Migrate(ctx context.Context) error {
	if err := s.drv.Exec(ctx, airportsDDL, []any{}, nil); err != nil {
		s.logger.Error("failed to migrate airports table", "error", err)
		return fmt.Errorf("%w: migrate airports: %v", common.ErrDatabase, err)
	}
	return nil
}

// Upsert inserts or replaces airports by IATA code in one transaction.
func (s *AirportStore) Upsert(ctx context.Context, list []entity.Airport) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}
	start := time.Now()
	tx, err := s.drv.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for i := 0; i < len(list); i += upsertBatch {
		end := min(i+upsertBatch, len(list))
		ins := s.builder().Insert(airportsTable).Columns(airportColumns...)
		for _, a := range list[i:end] {
			ins.Values(a.IATACode, a.Name, a.City, a.CountryCode, a.Type)
		}
		ins.OnConflict(entsql.ConflictColumns("iata_code"), entsql.ResolveWithNewValues())
		q, args := ins.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			s.logger.Error("failed to upsert airports", "batch_start", i, "error", err)
			return 0, fmt.Errorf("%w: upsert airports: %v", common.ErrDatabase, err)
		}
		n += end - i
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	s.logger.Info("airports.upserted", "rows", n, "elapsed_ms", time.Since(start).Milliseconds())
	return n, nil
}

// ImportCSV reads an airports CSV (OurAirports or the seed format) and upserts
// every usable row.
func (s *AirportStore) ImportCSV(ctx context.Context, r io.Reader) (airports.ImportStats, error) {
	list, stats, err := airports.ReadCSV(r)
	if err != nil {
		return stats, err
	}
	if _, err := s.Upsert(ctx, list); err != nil {
		return stats, err
	}
	s.logger.Info("airports.import.done", "rows", stats.Rows, "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}

func (s *AirportStore) Get(ctx context.Context, code string) (entity.Airport, error) {
	q, args := s.builder().Select(airportColumns...).
		From(entsql.Table(airportsTable)).
		Where(entsql.EQ("iata_code", code)).
		Query()
	var a entity.Airport
	err := s.drv.DB().QueryRowContext(ctx, q, args...).Scan(&a.IATACode, &a.Name, &a.City, &a.CountryCode, &a.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Airport{}, common.NewAppError("AIRPORT_NOT_FOUND", code, common.ErrNotFound)
	}
	if err != nil {
		return entity.Airport{}, fmt.Errorf("%w: get airport: %v", common.ErrDatabase, err)
	}
	return a, nil
}

func (s *AirportStore) Count(ctx context.Context) (int, error) {
	q, args := s.builder().Select(entsql.Count("*")).From(entsql.Table(airportsTable)).Query()
	var n int
	if err := s.drv.DB().QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count airports: %v", common.ErrDatabase, err)
	}
	return n, nil
}

// Snapshot loads every row into an in-memory directory.
func (s *AirportStore) Snapshot(ctx context.Context) (*airports.Static, error) {
	q, args := s.builder().Select(airportColumns...).
		From(entsql.Table(airportsTable)).
		OrderBy("iata_code").
		Query()
	rows, err := s.drv.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list airports: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var list []entity.Airport
	for rows.Next() {
		var a entity.Airport
		if err := rows.Scan(&a.IATACode, &a.Name, &a.City, &a.CountryCode, &a.Type); err != nil {
			return nil, fmt.Errorf("%w: scan airport: %v", common.ErrDatabase, err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list airports: %v", common.ErrDatabase, err)
	}
	s.logger.Debug("airports.snapshot.loaded", "rows", len(list))
	return airports.NewStatic(list), nil
}

// LoadDirectory returns a snapshot of the store, or fallback when the store is
// empty or unreadable.
func LoadDirectory(ctx context.Context, repo AirportRepository, fallback airports.Directory, logger *slog.Logger) airports.Directory {
	if logger == nil {
		logger = slog.Default()
	}
	snap, err := repo.Snapshot(ctx)
	if err != nil {
		logger.Warn("airports.snapshot.failed", "error", err)
		return fallback
	}
	if snap.Len() == 0 {
		logger.Warn("airports.snapshot.empty", "hint", "run `bptracker airports import`")
		return fallback
	}
	return snap
}
