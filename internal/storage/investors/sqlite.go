// Package investors persists investor balances in SQLite. Balances are
// stored as a JSON column keyed by the investor id.
package investors

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/epconsortium/cryptomarket/internal/domain"
	"github.com/epconsortium/cryptomarket/pkg/retrier"
)

const schema = `CREATE TABLE IF NOT EXISTS investors (
	uuid     TEXT PRIMARY KEY,
	balances TEXT NOT NULL
);`

// Store is a SQLite-backed investor repository.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. The connection probe is retried briefly so a slow disk at
// startup is not immediately fatal; persistent failure is, and the host is
// expected to disable the market entirely in that case.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}

	r := retrier.New(retrier.WithMaxAttempts(3))
	if err := r.Do(ctx, func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "database %s unreachable", path)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create investors table")
	}
	return &Store{db: db, logger: logger}, nil
}

// Load fetches one investor; domain.ErrNotFound when the id has no record.
func (s *Store) Load(ctx context.Context, id string) (*domain.Investor, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT balances FROM investors WHERE uuid = ?`, id).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errors.Wrapf(domain.ErrNotFound, "investor %s", id)
	case err != nil:
		return nil, errors.Wrapf(err, "query investor %s", id)
	}

	balances, err := decodeBalances(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode balances of %s", id)
	}
	return domain.NewInvestorWithBalances(id, balances), nil
}

// Save upserts one investor.
func (s *Store) Save(ctx context.Context, investor *domain.Investor) error {
	raw, err := encodeBalances(investor.Balances())
	if err != nil {
		return errors.Wrapf(err, "encode balances of %s", investor.ID())
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO investors (uuid, balances) VALUES (?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET balances = excluded.balances`,
		investor.ID(), raw)
	return errors.Wrapf(err, "save investor %s", investor.ID())
}

// SaveAll upserts the investors in one transaction.
func (s *Store) SaveAll(ctx context.Context, investors []*domain.Investor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO investors (uuid, balances) VALUES (?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET balances = excluded.balances`)
	if err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	defer stmt.Close()

	for _, investor := range investors {
		raw, err := encodeBalances(investor.Balances())
		if err != nil {
			return errors.Wrapf(err, "encode balances of %s", investor.ID())
		}
		if _, err := stmt.ExecContext(ctx, investor.ID(), raw); err != nil {
			return errors.Wrapf(err, "save investor %s", investor.ID())
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// ListAll returns every stored investor.
func (s *Store) ListAll(ctx context.Context) ([]*domain.Investor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uuid, balances FROM investors`)
	if err != nil {
		return nil, errors.Wrap(err, "query investors")
	}
	defer rows.Close()

	var investors []*domain.Investor
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrap(err, "scan investor row")
		}
		balances, err := decodeBalances(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode balances of %s", id)
		}
		investors = append(investors, domain.NewInvestorWithBalances(id, balances))
	}
	return investors, errors.Wrap(rows.Err(), "iterate investors")
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeBalances(balances map[string]domain.Balance) (string, error) {
	raw, err := json.Marshal(balances)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeBalances(raw string) (map[string]domain.Balance, error) {
	balances := make(map[string]domain.Balance)
	if err := json.Unmarshal([]byte(raw), &balances); err != nil {
		return nil, err
	}
	return balances, nil
}
