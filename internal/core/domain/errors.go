package domain

import "errors"

// Ledger errors. ErrVersionConflict is internal to the transfer engine's
// retry loop; callers only ever see ErrContention once the budget runs out.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be positive with at most two decimal places")
	ErrSameAccount       = errors.New("sender and receiver are the same account")
	ErrVersionConflict   = errors.New("account version conflict")
	ErrContention        = errors.New("too much contention on account, retry later")
)

// User management errors.
var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoUsers            = errors.New("there are no users in the system")
)
