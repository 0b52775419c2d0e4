package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JenwitK/mobilebanking-api/internal/adapter/storage"
	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
)

func newTestLedger(t *testing.T, usernames ...string) (*storage.Memory, *Engine) {
	t.Helper()
	mem := storage.NewMemory()
	for _, name := range usernames {
		err := mem.Create(context.Background(), &domain.User{
			ID:        uuid.New(),
			Username:  name,
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	return mem, NewEngine(mem, mem)
}

func balanceOf(t *testing.T, mem *storage.Memory, account string) decimal.Decimal {
	t.Helper()
	balance, _, err := mem.Balance(context.Background(), account)
	require.NoError(t, err)
	return balance
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransferInsufficientFunds(t *testing.T) {
	mem, engine := newTestLedger(t, "alice", "bob")

	_, err := engine.Transfer(context.Background(), "alice", "bob", amount("10"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.True(t, balanceOf(t, mem, "alice").IsZero())
	assert.True(t, balanceOf(t, mem, "bob").IsZero())

	log, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, log, "failed transfer must not reach the log")
}

func TestTransferMovesMoney(t *testing.T) {
	mem, engine := newTestLedger(t, "alice", "bob")

	_, err := engine.Deposit(context.Background(), "alice", amount("100"))
	require.NoError(t, err)

	tx, err := engine.Transfer(context.Background(), "alice", "bob", amount("40"))
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, "alice", tx.FromUser)
	assert.Equal(t, "bob", tx.ToUser)
	assert.Equal(t, domain.TypeTransfer, tx.Type)
	assert.True(t, tx.Amount.Equal(amount("40")))
	assert.NotZero(t, tx.Seq)

	assert.True(t, balanceOf(t, mem, "alice").Equal(amount("60")))
	assert.True(t, balanceOf(t, mem, "bob").Equal(amount("40")))

	sent, err := mem.BySender(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Amount.Equal(amount("40")))
}

func TestTransferValidation(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		amount  decimal.Decimal
		wantErr error
	}{
		{"same account", "alice", "alice", amount("10"), domain.ErrSameAccount},
		{"zero amount", "alice", "bob", decimal.Zero, domain.ErrInvalidAmount},
		{"negative amount", "alice", "bob", amount("-5"), domain.ErrInvalidAmount},
		{"sub-cent scale", "alice", "bob", amount("1.005"), domain.ErrInvalidAmount},
		{"unknown sender", "mallory", "bob", amount("10"), domain.ErrAccountNotFound},
		{"unknown receiver", "alice", "mallory", amount("10"), domain.ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem, engine := newTestLedger(t, "alice", "bob")
			_, err := engine.Deposit(context.Background(), "alice", amount("100"))
			require.NoError(t, err)

			_, err = engine.Transfer(context.Background(), tc.from, tc.to, tc.amount)
			require.ErrorIs(t, err, tc.wantErr)

			assert.True(t, balanceOf(t, mem, "alice").Equal(amount("100")), "no mutation on rejected transfer")
		})
	}
}

func TestTrailingZeroScaleAccepted(t *testing.T) {
	_, engine := newTestLedger(t, "alice", "bob")
	_, err := engine.Deposit(context.Background(), "alice", amount("10.120"))
	require.NoError(t, err)
}

// Five concurrent transfers of 10 from a balance of 40: exactly four may
// succeed. Two transfers acting on the same reading of the balance must
// never both commit; that lost update is the bug this engine exists to
// prevent.
func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	const n = 5
	mem, engine := newTestLedger(t, "alice", "bob")

	_, err := engine.Deposit(context.Background(), "alice", amount("40"))
	require.NoError(t, err)

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Transfer(context.Background(), "alice", "bob", amount("10"))
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, domain.ErrInsufficientFunds) && !errors.Is(err, domain.ErrContention) {
			t.Fatalf("unexpected transfer error: %v", err)
		}
	}
	assert.Equal(t, n-1, successes, "exactly one transfer must fail")

	assert.True(t, balanceOf(t, mem, "alice").IsZero())
	assert.True(t, balanceOf(t, mem, "bob").Equal(amount("40")))

	log, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, log, n, "one deposit plus four transfers")
}

// Heavier interleaving: invariants must hold even when some transfers give
// up with contention.
func TestConcurrentTransfersConserveMoney(t *testing.T) {
	const n = 20
	mem, engine := newTestLedger(t, "alice", "bob", "carol")

	_, err := engine.Deposit(context.Background(), "alice", amount("100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := "bob"
			if i%2 == 0 {
				to = "carol"
			}
			_, _ = engine.Transfer(context.Background(), "alice", to, amount("10"))
		}(i)
	}
	wg.Wait()

	alice := balanceOf(t, mem, "alice")
	bob := balanceOf(t, mem, "bob")
	carol := balanceOf(t, mem, "carol")

	assert.False(t, alice.IsNegative(), "balance must never go negative")
	assert.True(t, alice.Add(bob).Add(carol).Equal(amount("100")), "money is conserved")

	// Ledger and log agree: each balance equals the signed sum of its history.
	log, err := mem.All(context.Background())
	require.NoError(t, err)
	sums := map[string]decimal.Decimal{"alice": decimal.Zero, "bob": decimal.Zero, "carol": decimal.Zero}
	for _, tx := range log {
		if tx.FromUser != "" {
			sums[tx.FromUser] = sums[tx.FromUser].Sub(tx.Amount)
		}
		sums[tx.ToUser] = sums[tx.ToUser].Add(tx.Amount)
	}
	assert.True(t, sums["alice"].Equal(alice))
	assert.True(t, sums["bob"].Equal(bob))
	assert.True(t, sums["carol"].Equal(carol))
}

type conflictStore struct {
	*storage.Memory
}

func (s conflictStore) ApplyDelta(ctx context.Context, account string, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	return 0, domain.ErrVersionConflict
}

func TestTransferSurfacesContention(t *testing.T) {
	mem, _ := newTestLedger(t, "alice", "bob")
	_, err := mem.ApplyDelta(context.Background(), "alice", amount("100"), 0)
	require.NoError(t, err)

	engine := NewEngine(conflictStore{mem}, mem)
	_, err = engine.Transfer(context.Background(), "alice", "bob", amount("10"))
	require.ErrorIs(t, err, domain.ErrContention)
}

type failingLog struct {
	*storage.Memory
}

func (l failingLog) Append(ctx context.Context, tx *domain.Transaction) (int64, error) {
	return 0, errors.New("log unavailable")
}

func TestTransferRollsBackWhenAppendFails(t *testing.T) {
	mem, engine := newTestLedger(t, "alice", "bob")
	_, err := engine.Deposit(context.Background(), "alice", amount("100"))
	require.NoError(t, err)

	broken := NewEngine(mem, failingLog{mem})
	_, err = broken.Transfer(context.Background(), "alice", "bob", amount("40"))
	require.Error(t, err)

	assert.True(t, balanceOf(t, mem, "alice").Equal(amount("100")), "debit leg compensated")
	assert.True(t, balanceOf(t, mem, "bob").IsZero(), "credit leg compensated")
}

func TestDeposit(t *testing.T) {
	mem, engine := newTestLedger(t, "alice")

	_, err := engine.Deposit(context.Background(), "alice", amount("0"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = engine.Deposit(context.Background(), "mallory", amount("10"))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	tx, err := engine.Deposit(context.Background(), "alice", amount("25.50"))
	require.NoError(t, err)
	assert.Empty(t, tx.FromUser)
	assert.Equal(t, domain.TypeDeposit, tx.Type)
	assert.True(t, balanceOf(t, mem, "alice").Equal(amount("25.50")))
}
