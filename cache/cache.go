// Package cache keeps an sqlite index of downloaded artifacts so repeated runs
// reuse files already on disk.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/mattn/go-sqlite3"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var ErrMiss = errors.New("artifact not in cache")

type Entry struct {
	RunID        int64
	Name         string
	Path         string
	SHA256       string
	Size         int64
	DownloadedAt time.Time
}

type Cache struct {
	db *sql.DB
}

const schema = `
create table if not exists artifacts (
	run_id        integer not null,
	name          text not null,
	path          text not null,
	sha256        text not null,
	size          integer not null,
	downloaded_at timestamp not null,
	primary key (run_id, name)
)`

func Open(ctx context.Context, path string) (*Cache, error) {
	db, err := otelsql.Open("sqlite3", path, otelsql.WithAttributes(semconv.DBSystemSqlite))
	if err != nil {
		return nil, fmt.Errorf("error opening cache %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the entry for the artifact of a run. Entries whose file has
// since been removed are reported as ErrMiss.
func (c *Cache) Lookup(ctx context.Context, runID int64, name string) (Entry, error) {
	e := Entry{RunID: runID, Name: name}

	row := c.db.QueryRowContext(ctx,
		`select path, sha256, size, downloaded_at from artifacts where run_id = ? and name = ?`,
		runID, name,
	)

	if err := row.Scan(&e.Path, &e.SHA256, &e.Size, &e.DownloadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrMiss
		}
		return Entry{}, err
	}

	if _, err := os.Stat(e.Path); err != nil {
		return Entry{}, ErrMiss
	}

	return e, nil
}

func (c *Cache) Record(ctx context.Context, e Entry) error {
	if e.DownloadedAt.IsZero() {
		e.DownloadedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx,
		`insert into artifacts (run_id, name, path, sha256, size, downloaded_at)
		values (?, ?, ?, ?, ?, ?)
		on conflict (run_id, name) do update set
			path = excluded.path,
			sha256 = excluded.sha256,
			size = excluded.size,
			downloaded_at = excluded.downloaded_at`,
		e.RunID, e.Name, e.Path, e.SHA256, e.Size, e.DownloadedAt,
	)
	return err
}
