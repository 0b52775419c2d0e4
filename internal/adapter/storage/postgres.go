package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
)

// Amounts cross the driver boundary as text-cast NUMERIC on both sides.
// pgx would happily give us float64 for numeric columns and that is exactly
// the rounding drift the ledger must never pick up.

const uniqueViolation = "23505"

// --- UserRepository ---

type PostgresUsers struct {
	db *pgxpool.Pool
}

func NewPostgresUsers(db *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{db: db}
}

func (r *PostgresUsers) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, balance, version, created_at)
		VALUES ($1, $2, $3, 0, 0, $4)
		RETURNING balance::text
	`
	var balance string
	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.PasswordHash, user.CreatedAt).Scan(&balance)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	user.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return fmt.Errorf("create user: parse balance: %w", err)
	}
	return nil
}

func (r *PostgresUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, username, password_hash, balance::text, created_at FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT id, username, password_hash, balance::text, created_at FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *PostgresUsers) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var balance string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &balance, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("get user: parse balance: %w", err)
	}
	return &u, nil
}

func (r *PostgresUsers) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT id, username, password_hash, balance::text, created_at FROM users ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var balance string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &balance, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if u.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("list users: parse balance: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresUsers) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// --- LedgerStore ---

type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (r *PostgresLedger) Balance(ctx context.Context, account string) (decimal.Decimal, int64, error) {
	var balance string
	var version int64
	err := r.db.QueryRow(ctx,
		`SELECT balance::text, version FROM users WHERE username = $1`, account,
	).Scan(&balance, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("read balance: %w", err)
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("read balance: parse: %w", err)
	}
	return amount, version, nil
}

// ApplyDelta is a single conditional UPDATE: the version predicate and the
// non-negative predicate ride in the WHERE clause, so the stale-read and
// overdraw races cannot slip between a check and the write. A zero-row
// result is classified with a follow-up read.
func (r *PostgresLedger) ApplyDelta(ctx context.Context, account string, delta decimal.Decimal, expectedVersion int64) (int64, error) {
	query := `
		UPDATE users
		SET balance = balance + $1::numeric, version = version + 1
		WHERE username = $2 AND version = $3 AND balance + $1::numeric >= 0
		RETURNING version
	`
	var newVersion int64
	err := r.db.QueryRow(ctx, query, delta.String(), account, expectedVersion).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("apply delta: %w", err)
	}

	// Nothing matched: not found, stale version, or overdraw.
	var version int64
	err = r.db.QueryRow(ctx, `SELECT version FROM users WHERE username = $1`, account).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("apply delta: classify: %w", err)
	}
	if version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}
	return 0, domain.ErrInsufficientFunds
}

// --- TransactionLog ---

type PostgresLog struct {
	db *pgxpool.Pool
}

func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

const txColumns = `seq, id, COALESCE(from_user, ''), to_user, amount::text, type, created_at`

func (r *PostgresLog) Append(ctx context.Context, tx *domain.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (id, from_user, to_user, amount, type, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4::numeric, $5, $6)
		RETURNING seq
	`
	err := r.db.QueryRow(ctx, query,
		tx.ID, tx.FromUser, tx.ToUser, tx.Amount.String(), tx.Type, tx.CreatedAt,
	).Scan(&tx.Seq)
	if err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}
	return tx.Seq, nil
}

func (r *PostgresLog) All(ctx context.Context) ([]domain.Transaction, error) {
	return r.query(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY seq`)
}

func (r *PostgresLog) BySender(ctx context.Context, user string) ([]domain.Transaction, error) {
	return r.query(ctx, `SELECT `+txColumns+` FROM transactions WHERE from_user = $1 ORDER BY seq DESC`, user)
}

func (r *PostgresLog) ByRecipient(ctx context.Context, user string) ([]domain.Transaction, error) {
	return r.query(ctx, `SELECT `+txColumns+` FROM transactions WHERE to_user = $1 ORDER BY seq DESC`, user)
}

func (r *PostgresLog) ByParticipant(ctx context.Context, user string, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE from_user = $1 OR to_user = $1 ORDER BY seq DESC`
	if limit > 0 {
		return r.query(ctx, query+` LIMIT $2`, user, limit)
	}
	return r.query(ctx, query, user)
}

func (r *PostgresLog) query(ctx context.Context, sql string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amount string
		if err := rows.Scan(&tx.Seq, &tx.ID, &tx.FromUser, &tx.ToUser, &amount, &tx.Type, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("query transactions: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("query transactions: parse amount: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- IdempotencyStore ---

type PostgresIdempotency struct {
	db *pgxpool.Pool
}

func NewPostgresIdempotency(db *pgxpool.Pool) *PostgresIdempotency {
	return &PostgresIdempotency{db: db}
}

func (r *PostgresIdempotency) Lookup(ctx context.Context, key string) (int, []byte, bool, error) {
	var status int
	var body []byte
	err := r.db.QueryRow(ctx,
		`SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1`, key,
	).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return status, body, true, nil
}

func (r *PostgresIdempotency) Save(ctx context.Context, key string, status int, body []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		key, status, body,
	)
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}
