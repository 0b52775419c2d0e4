// Package storage provides the persistence layer behind the transfer engine
// and query service. Every entity has a repository interface with a Postgres
// implementation for production and an in-memory one for tests and local runs.
package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
)

// LedgerStore maps account (username) to balance under optimistic
// concurrency control. Accounts are created through UserRepository.Create
// and never deleted; the transfer engine is the sole mutator.
type LedgerStore interface {
	// Balance returns the current balance and version of an account, or
	// domain.ErrAccountNotFound.
	Balance(ctx context.Context, account string) (decimal.Decimal, int64, error)

	// ApplyDelta adds delta (which may be negative) to the account's balance
	// if and only if its version still equals expectedVersion and the result
	// stays non-negative. The version predicate and the non-negative predicate
	// are evaluated in the same atomic step as the write, so a stale caller
	// gets domain.ErrVersionConflict and an overdraw gets
	// domain.ErrInsufficientFunds with no mutation either way.
	// Returns the new version on success.
	ApplyDelta(ctx context.Context, account string, delta decimal.Decimal, expectedVersion int64) (int64, error)
}

// TransactionLog is the append-only, totally ordered record of completed
// transfers and deposits. Append assigns a monotonically increasing sequence
// number and must be durable before it returns.
type TransactionLog interface {
	Append(ctx context.Context, tx *domain.Transaction) (int64, error)

	// All returns every transaction in ascending sequence order.
	All(ctx context.Context) ([]domain.Transaction, error)

	// BySender and ByRecipient return one direction of an account's history,
	// newest first.
	BySender(ctx context.Context, user string) ([]domain.Transaction, error)
	ByRecipient(ctx context.Context, user string) ([]domain.Transaction, error)

	// ByParticipant returns transactions where the user is sender or
	// recipient, newest first, capped at limit (0 means no cap).
	ByParticipant(ctx context.Context, user string, limit int) ([]domain.Transaction, error)
}

// UserRepository stores registered users. Create also opens the user's
// ledger account with a zero balance.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// IdempotencyStore caches responses keyed by the Idempotency-Key header so
// retried mutations replay the original result instead of re-executing.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (status int, body []byte, ok bool, err error)
	Save(ctx context.Context, key string, status int, body []byte) error
}
