package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
)

// Memory is an in-memory implementation of every repository interface,
// used by tests and local runs without a database. A single mutex guards
// all state; per-account versioning still applies so the transfer engine
// exercises the same conflict paths as against Postgres.
type Memory struct {
	mu      sync.Mutex
	users   map[string]*memAccount // keyed by username
	byID    map[uuid.UUID]string
	log     []domain.Transaction
	nextSeq int64
	idem    map[string]idemEntry
}

type memAccount struct {
	user    domain.User
	version int64
}

type idemEntry struct {
	status int
	body   []byte
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*memAccount),
		byID:  make(map[uuid.UUID]string),
		idem:  make(map[string]idemEntry),
	}
}

// --- UserRepository ---

func (m *Memory) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Username]; exists {
		return domain.ErrUsernameTaken
	}
	u := *user
	u.Balance = decimal.Zero
	m.users[u.Username] = &memAccount{user: u}
	m.byID[u.ID] = u.Username
	user.Balance = u.Balance
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := m.users[username].user
	return &cp, nil
}

func (m *Memory) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := acct.user
	return &cp, nil
}

func (m *Memory) List(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, acct := range m.users {
		out = append(out, acct.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// --- LedgerStore ---

func (m *Memory) Balance(ctx context.Context, account string) (decimal.Decimal, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.users[account]
	if !ok {
		return decimal.Zero, 0, domain.ErrAccountNotFound
	}
	return acct.user.Balance, acct.version, nil
}

func (m *Memory) ApplyDelta(ctx context.Context, account string, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.users[account]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if acct.version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}
	next := acct.user.Balance.Add(delta)
	if next.IsNegative() {
		return 0, domain.ErrInsufficientFunds
	}
	acct.user.Balance = next
	acct.version++
	return acct.version, nil
}

// --- TransactionLog ---

func (m *Memory) Append(ctx context.Context, tx *domain.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	tx.Seq = m.nextSeq
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	m.log = append(m.log, *tx)
	return tx.Seq, nil
}

func (m *Memory) All(ctx context.Context) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, len(m.log))
	copy(out, m.log)
	return out, nil
}

func (m *Memory) BySender(ctx context.Context, user string) ([]domain.Transaction, error) {
	return m.filter(func(tx domain.Transaction) bool { return tx.FromUser == user && tx.FromUser != "" }, 0)
}

func (m *Memory) ByRecipient(ctx context.Context, user string) ([]domain.Transaction, error) {
	return m.filter(func(tx domain.Transaction) bool { return tx.ToUser == user }, 0)
}

func (m *Memory) ByParticipant(ctx context.Context, user string, limit int) ([]domain.Transaction, error) {
	return m.filter(func(tx domain.Transaction) bool {
		return tx.ToUser == user || (tx.FromUser == user && tx.FromUser != "")
	}, limit)
}

// filter returns matches newest first, capped at limit when limit > 0.
func (m *Memory) filter(match func(domain.Transaction) bool, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for i := len(m.log) - 1; i >= 0; i-- {
		if match(m.log[i]) {
			out = append(out, m.log[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- IdempotencyStore ---

func (m *Memory) Lookup(ctx context.Context, key string) (int, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.idem[key]
	if !ok {
		return 0, nil, false, nil
	}
	return entry.status, entry.body, true, nil
}

func (m *Memory) Save(ctx context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.idem[key]; exists {
		return nil
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	m.idem[key] = idemEntry{status: status, body: cp}
	return nil
}
