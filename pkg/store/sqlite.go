package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automerge/automerge-go"
	_ "github.com/mattn/go-sqlite3"
)

var ErrStoreNotFound = errors.New("store not found")

// SQLiteStore keeps one base64 encoded automerge document per store id.
type SQLiteStore struct {
	database *sql.DB
	logger   *slog.Logger
}

func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{database: db, logger: logger.With("database", path)}, nil
}

func (s *SQLiteStore) Close() error {
	return s.database.Close()
}

// Init creates the stores table and seeds id with an empty document if it has no row.
func (s *SQLiteStore) Init(ctx context.Context, id string) error {
	if _, err := s.database.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS stores (
    	id text not null primary key,
        content text
		)`,
	); err != nil {
		return fmt.Errorf("failed to create stores table: %w", err)
	}
	if _, err := s.database.ExecContext(ctx,
		`INSERT OR IGNORE INTO stores (id, content) VALUES (?, ?)`,
		id, base64.StdEncoding.EncodeToString(automerge.New().Save()),
	); err != nil {
		return fmt.Errorf("failed to seed store %s: %w", id, err)
	}
	s.logger.Info("ensured store exists", "store", id)
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*automerge.Doc, error) {
	var content string
	if err := s.database.QueryRowContext(ctx, `SELECT content FROM stores WHERE id = ?`, id).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load %s: %w", id, ErrStoreNotFound)
		}
		return nil, fmt.Errorf("failed to query store %s: %w", id, err)
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode store %s: %w", id, err)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc %s: %w", id, err)
	}
	return doc, nil
}

// Save writes doc to the store row if its content differs. It reports whether the
// row was updated.
func (s *SQLiteStore) Save(ctx context.Context, id string, doc *automerge.Doc) (bool, error) {
	content := base64.StdEncoding.EncodeToString(doc.Save())
	res, err := s.database.ExecContext(ctx,
		`UPDATE stores SET content = ? WHERE id = ? AND content != ?`,
		content, id, content,
	)
	if err != nil {
		return false, fmt.Errorf("failed to backup doc %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count updated rows: %w", err)
	}
	if affected > 0 {
		s.logger.Info("backed up", "store", id, "heads", doc.Heads())
	}
	return affected > 0, nil
}

// StoreIDs lists every store row.
func (s *SQLiteStore) StoreIDs(ctx context.Context) ([]string, error) {
	rows, err := s.database.QueryContext(ctx, `SELECT id FROM stores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("failed to close rows", "err", err)
		}
	}()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
