package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/liveboard/board-sync/store"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type PgStorage struct {
	db *pgxpool.Pool
}

func NewPGStorage(databaseURL string) (*PgStorage, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver %w", err)
	}

	migrationDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", migrationDriver,
		"board-sync", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate migrations %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("failed to run migrations %w", err)
	}

	pgxPool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New(%v): %w", databaseURL, err)
	}
	return &PgStorage{db: pgxPool}, nil
}

func (s *PgStorage) Put(ctx context.Context, id string, data []byte, expectedRevision int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.Serializable,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(context.Background())

	// the write is accepted only if the stored revision matches the one the
	// caller declared; an absent record counts as revision 0
	var revision int64
	err = tx.QueryRow(ctx, "SELECT revision FROM records WHERE id = $1", id).Scan(&revision)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("failed to get record's latest revision: %w", err)
	}
	if revision != expectedRevision {
		return 0, &store.RevisionConflictError{Id: id, Expected: expectedRevision, Actual: revision}
	}

	newRevision := expectedRevision + 1
	_, err = tx.Exec(ctx, "INSERT INTO records (id, data, revision) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, revision=EXCLUDED.revision", id, data, newRevision)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newRevision, nil
}

func (s *PgStorage) Get(ctx context.Context, id string) (*store.StoredRecord, error) {
	record := store.StoredRecord{Id: id}
	err := s.db.QueryRow(ctx, "SELECT data, revision FROM records WHERE id = $1", id).Scan(&record.Data, &record.Revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return &record, nil
}

func (s *PgStorage) List(ctx context.Context) ([]store.StoredRecord, error) {
	rows, err := s.db.Query(ctx, "SELECT id, data, revision FROM records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]store.StoredRecord, 0)
	for rows.Next() {
		record := store.StoredRecord{}
		err = rows.Scan(&record.Id, &record.Data, &record.Revision)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
