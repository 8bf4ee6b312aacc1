// Package cache keeps the last train list the client received in a local
// SQLite database, so it can still be shown when the server is unreachable.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/client/migrations"
	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/dbx"
	"github.com/dmitrijs2005/trainbook/internal/filex"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

const fetchedAtKey = "fetched_at"

var gooseUpContext = goose.UpContext

// RunMigrations applies the embedded cache schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return gooseUpContext(ctx, db, ".")
}

// TrainCache stores one train snapshot, replacing the previous one on Save.
type TrainCache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the cache database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*TrainCache, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *TrainCache {
	return &TrainCache{db: db, now: time.Now}
}

// Save replaces the cached snapshot with trains.
func (c *TrainCache) Save(ctx context.Context, trains []models.Train) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trains`); err != nil {
			return fmt.Errorf("failed to clear trains: %w", err)
		}

		for i, t := range trains {
			var extra []byte
			if len(t.Extra) > 0 {
				var err error
				if extra, err = json.Marshal(t.Extra); err != nil {
					return fmt.Errorf("failed to encode extra fields of train %q: %w", t.ID, err)
				}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO trains (position, id, number, from_station, to_station, departure, seats_free, extra)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, i, t.ID, t.Number, t.From, t.To, t.Departure.UTC().Format(time.RFC3339Nano), t.SeatsFree, extra)
			if err != nil {
				return fmt.Errorf("failed to insert train %q: %w", t.ID, err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, fetchedAtKey, []byte(c.now().UTC().Format(time.RFC3339Nano)))
		if err != nil {
			return fmt.Errorf("failed to set metadata[%s]: %w", fetchedAtKey, err)
		}
		return nil
	})
}

// Load returns the cached snapshot in the order it was saved, along with the
// time of that save. It fails with common.ErrNotFound when nothing was ever saved.
func (c *TrainCache) Load(ctx context.Context) ([]models.Train, time.Time, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, fetchedAtKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, common.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get metadata[%s]: %w", fetchedAtKey, err)
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("bad %s value: %w", fetchedAtKey, err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, number, from_station, to_station, departure, seats_free, extra
		FROM trains ORDER BY position
	`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list trains: %w", err)
	}
	defer rows.Close()

	trains := []models.Train{}
	for rows.Next() {
		var (
			t         models.Train
			departure string
			extra     []byte
		)
		if err := rows.Scan(&t.ID, &t.Number, &t.From, &t.To, &departure, &t.SeatsFree, &extra); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan train row: %w", err)
		}
		if t.Departure, err = time.Parse(time.RFC3339Nano, departure); err != nil {
			return nil, time.Time{}, fmt.Errorf("bad departure for train %q: %w", t.ID, err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &t.Extra); err != nil {
				return nil, time.Time{}, fmt.Errorf("bad extra fields for train %q: %w", t.ID, err)
			}
		}
		trains = append(trains, t)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to iterate train rows: %w", err)
	}

	return trains, fetchedAt, nil
}

// Close closes the underlying database.
func (c *TrainCache) Close() error {
	return c.db.Close()
}
