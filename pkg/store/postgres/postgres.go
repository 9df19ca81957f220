// Package postgres implements the store contracts with sqlx over pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/database"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx so every repository can
// run against the pool or inside a transaction.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Store bundles all repositories over one database client and implements
// store.TxRunner.
type Store struct {
	store.Stores

	db *sqlx.DB
}

// New builds the repository bundle on top of a connected database client.
func New(client *database.Client) *Store {
	return &Store{
		Stores: newStores(client.DB),
		db:     client.DB,
	}
}

func newStores(q querier) store.Stores {
	return store.Stores{
		Services:        &ServiceStore{q: q},
		Dependencies:    &DependencyStore{q: q},
		Cycles:          &CycleStore{q: q},
		Recommendations: &RecommendationStore{q: q},
		Audit:           &AuditStore{q: q},
		ActiveSLOs:      &ActiveSLOStore{q: q},
	}
}

// WithinTx runs fn against a transactional view of every repository. The
// transaction commits only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *store.Stores) error) error {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stores := newStores(txx)
	if err := fn(ctx, &stores); err != nil {
		if rbErr := txx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	return txx.Commit()
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
