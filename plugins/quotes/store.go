package quotes

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/unerror/iris/internal/db"
)

// Quote is one saved quote
type Quote struct {
	ID     int64
	Author string
	Body   string
}

// Store persists quotes in SQLite
type Store struct {
	db *db.SQLiteStore
}

const schema = `
CREATE TABLE IF NOT EXISTS quotes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// NewStore creates the quotes table if needed
func NewStore(sdb *db.SQLiteStore) (*Store, error) {
	if _, err := sdb.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create quotes table")
	}
	return &Store{db: sdb}, nil
}

// Add saves a quote and returns its id
func (s *Store) Add(ctx context.Context, author, body string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO quotes (author, body) VALUES (?, ?)`, author, body)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert quote")
	}
	return res.LastInsertId()
}

// Get returns the quote with the given id
func (s *Store) Get(ctx context.Context, id int64) (Quote, error) {
	var q Quote
	row := s.db.QueryRowContext(ctx, `SELECT id, author, body FROM quotes WHERE id = ?`, id)
	if err := row.Scan(&q.ID, &q.Author, &q.Body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quote{}, errors.Errorf("no quote with id %d", id)
		}
		return Quote{}, errors.Wrap(err, "failed to read quote")
	}
	return q, nil
}

// Random returns a random quote
func (s *Store) Random(ctx context.Context) (Quote, error) {
	var q Quote
	row := s.db.QueryRowContext(ctx, `SELECT id, author, body FROM quotes ORDER BY RANDOM() LIMIT 1`)
	if err := row.Scan(&q.ID, &q.Author, &q.Body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quote{}, errors.New("no quotes saved yet")
		}
		return Quote{}, errors.Wrap(err, "failed to read quote")
	}
	return q, nil
}

// Count returns the number of saved quotes
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count quotes")
	}
	return n, nil
}
