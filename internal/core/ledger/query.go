package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JenwitK/mobilebanking-api/internal/adapter/storage"
	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
)

// RecentWindow caps the combined history returned by AllFor.
const RecentWindow = 5

// Queries is the read side over the transaction log. It never mutates the
// ledger store or the log; results reflect a consistent snapshot that may
// trail concurrent appends.
type Queries struct {
	log storage.TransactionLog
}

func NewQueries(log storage.TransactionLog) *Queries {
	return &Queries{log: log}
}

// All returns every recorded transaction in append order.
func (q *Queries) All(ctx context.Context) ([]domain.Transaction, error) {
	return q.log.All(ctx)
}

// SentBy returns transactions the user sent, newest first.
func (q *Queries) SentBy(ctx context.Context, user string) ([]domain.Transaction, error) {
	return q.log.BySender(ctx, user)
}

// ReceivedBy returns transactions the user received, newest first.
func (q *Queries) ReceivedBy(ctx context.Context, user string) ([]domain.Transaction, error) {
	return q.log.ByRecipient(ctx, user)
}

// AllFor returns the user's combined sent and received history, newest
// first, capped at RecentWindow.
func (q *Queries) AllFor(ctx context.Context, user string) ([]domain.Transaction, error) {
	return q.log.ByParticipant(ctx, user, RecentWindow)
}

// Summary folds the user's full history into total income and expenses.
func (q *Queries) Summary(ctx context.Context, user string) (domain.Summary, error) {
	received, err := q.log.ByRecipient(ctx, user)
	if err != nil {
		return domain.Summary{}, err
	}
	sent, err := q.log.BySender(ctx, user)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, tx := range received {
		summary.Income = summary.Income.Add(tx.Amount)
	}
	for _, tx := range sent {
		summary.Expenses = summary.Expenses.Add(tx.Amount)
	}
	return summary, nil
}
