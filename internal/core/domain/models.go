package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types recorded in the log.
const (
	TypeTransfer = "transfer"
	TypeDeposit  = "deposit"
)

// User is a registered customer. One ledger account exists per user,
// keyed by username.
type User struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transaction is a completed movement of money. Immutable once appended:
// the log never updates or deletes rows.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Seq       int64           `json:"seq"`
	FromUser  string          `json:"from_user,omitempty"`
	ToUser    string          `json:"to_user"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary aggregates a user's transaction history. Income counts
// everything received (deposits included), expenses everything sent.
type Summary struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}
