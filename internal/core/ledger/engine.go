// Package ledger holds the transfer engine and the read-side query service.
// All balance mutation in the system funnels through the engine; everything
// else only reads.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JenwitK/mobilebanking-api/internal/adapter/storage"
	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
)

// maxRetries bounds the optimistic-concurrency retry loop. Conflicts mean
// another transfer touched the same account between our read and write;
// past this budget the caller gets domain.ErrContention and may retry.
const maxRetries = 5

// Engine executes transfers and deposits as atomic units against the
// ledger store and the transaction log. Concurrent transfers on the same
// account serialize through the store's per-account version check;
// unrelated transfers never contend.
type Engine struct {
	store storage.LedgerStore
	log   storage.TransactionLog
}

func NewEngine(store storage.LedgerStore, log storage.TransactionLog) *Engine {
	return &Engine{store: store, log: log}
}

// Transfer moves amount from one account to another and records exactly one
// transaction. Either all three writes (debit, credit, append) take effect
// or none do; a failed later step compensates the earlier ones.
//
// Validation order: same-account, amount, existence, funds. The funds check
// is advisory only; the store re-checks it atomically inside the debit, so
// two transfers racing on the same reading of the balance cannot both
// commit.
func (e *Engine) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Transaction, error) {
	if from == to {
		return nil, domain.ErrSameAccount
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		fromBalance, fromVersion, err := e.store.Balance(ctx, from)
		if err != nil {
			return nil, err
		}
		if _, _, err := e.store.Balance(ctx, to); err != nil {
			return nil, err
		}
		if fromBalance.LessThan(amount) {
			return nil, domain.ErrInsufficientFunds
		}

		_, err = e.store.ApplyDelta(ctx, from, amount.Neg(), fromVersion)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue // balance moved under us, re-validate from a fresh read
		}
		if err != nil {
			return nil, err
		}

		if err := e.applyWithRetry(ctx, to, amount); err != nil {
			e.compensate(ctx, from, amount, "credit leg failed")
			return nil, err
		}

		tx := &domain.Transaction{
			ID:        uuid.New(),
			FromUser:  from,
			ToUser:    to,
			Amount:    amount,
			Type:      domain.TypeTransfer,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := e.log.Append(ctx, tx); err != nil {
			e.compensate(ctx, to, amount.Neg(), "log append failed")
			e.compensate(ctx, from, amount, "log append failed")
			return nil, fmt.Errorf("record transfer: %w", err)
		}
		return tx, nil
	}

	return nil, domain.ErrContention
}

// Deposit credits an account from outside the system and records a
// transaction of type deposit. Same atomicity discipline as Transfer.
func (e *Engine) Deposit(ctx context.Context, to string, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	if err := e.applyWithRetry(ctx, to, amount); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:        uuid.New(),
		ToUser:    to,
		Amount:    amount,
		Type:      domain.TypeDeposit,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := e.log.Append(ctx, tx); err != nil {
		e.compensate(ctx, to, amount.Neg(), "log append failed")
		return nil, fmt.Errorf("record deposit: %w", err)
	}
	return tx, nil
}

// applyWithRetry applies a delta that cannot legitimately fail validation
// (credits, compensations), re-reading the version on each conflict.
func (e *Engine) applyWithRetry(ctx context.Context, account string, delta decimal.Decimal) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, version, err := e.store.Balance(ctx, account)
		if err != nil {
			return err
		}
		_, err = e.store.ApplyDelta(ctx, account, delta, version)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		return err
	}
	return domain.ErrContention
}

// compensate reverses an already-applied leg. Failure here means the ledger
// and the log disagree until the reconciler flags it, so it is loud.
func (e *Engine) compensate(ctx context.Context, account string, delta decimal.Decimal, reason string) {
	if err := e.applyWithRetry(ctx, account, delta); err != nil {
		slog.Error("compensation failed, ledger needs reconciliation",
			"account", account, "delta", delta.String(), "reason", reason, "error", err)
	}
}
