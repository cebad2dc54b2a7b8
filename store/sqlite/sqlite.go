package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/liveboard/board-sync/store"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(file string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite3 database %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
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
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Put(ctx context.Context, id string, data []byte, expectedRevision int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// the write is accepted only if the stored revision matches the one the
	// caller declared; an absent record counts as revision 0
	var revision int64
	err = tx.QueryRowContext(ctx, "SELECT revision FROM records WHERE id = ?", id).Scan(&revision)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to get record's latest revision: %w", err)
	}
	if revision != expectedRevision {
		return 0, &store.RevisionConflictError{Id: id, Expected: expectedRevision, Actual: revision}
	}

	newRevision := expectedRevision + 1
	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO records (id, data, revision) VALUES (?, ?, ?)", id, data, newRevision)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newRevision, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (*store.StoredRecord, error) {
	record := store.StoredRecord{Id: id}
	err := s.db.QueryRowContext(ctx, "SELECT data, revision FROM records WHERE id = ?", id).Scan(&record.Data, &record.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return &record, nil
}

func (s *SQLiteStorage) List(ctx context.Context) ([]store.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data, revision FROM records ORDER BY id")
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
