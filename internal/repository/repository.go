// Package repository provides data access interfaces and implementations
// for the arXiv Pulse service.
//
// # Overview
//
// This package defines the PaperStore interface and its PostgreSQL
// implementation following the repository pattern to abstract data
// persistence from pipeline logic.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple
// goroutines. The underlying pgxpool handles connection pooling and
// synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package and
// wrap database errors with context using fmt.Errorf with the %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: row does not exist (or is already summarized)
//   - domain.ErrPersistenceFatal: a batch insert could not be committed
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/arxivpulse/pulse-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. This allows repositories to work with both direct pool
// connections and transactions.
type DBTX = database.DBTX

// TxDB is a DBTX that can also open transactions. Both *database.DB and
// pgxmock pools satisfy it, which keeps batch inserts testable without a
// live database.
type TxDB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}
