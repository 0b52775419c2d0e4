package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
	"github.com/JenwitK/mobilebanking-api/internal/core/ledger"
)

type TransactionHandler struct {
	Engine  *ledger.Engine
	Queries *ledger.Queries
}

// Amounts arrive as decimal strings or JSON numbers; decimal.Decimal
// parses both without ever passing through a float.
type TransferRequest struct {
	FromUser string          `json:"from_user"`
	ToUser   string          `json:"to_user"`
	Amount   decimal.Decimal `json:"amount"`
}

type DepositRequest struct {
	ToUser string          `json:"to_user"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	tx, err := h.Engine.Transfer(c.Context(), req.FromUser, req.ToUser, req.Amount)
	if err != nil {
		return h.transferError(c, err, req.FromUser, req.ToUser)
	}

	slog.Info("transfer completed", "from", tx.FromUser, "to", tx.ToUser, "amount", tx.Amount.String(), "seq", tx.Seq)
	return c.Status(http.StatusCreated).JSON(tx)
}

func (h *TransactionHandler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	tx, err := h.Engine.Deposit(c.Context(), req.ToUser, req.Amount)
	if err != nil {
		return h.transferError(c, err, "", req.ToUser)
	}

	slog.Info("deposit completed", "to", tx.ToUser, "amount", tx.Amount.String(), "seq", tx.Seq)
	return c.Status(http.StatusCreated).JSON(tx)
}

func (h *TransactionHandler) transferError(c *fiber.Ctx, err error, from, to string) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "sender or receiver not found"})
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrContention):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": domain.ErrContention.Error()})
	default:
		slog.Error("transfer failed", "error", err, "from", from, "to", to)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "transfer failed"})
	}
}

func (h *TransactionHandler) ListAll(c *fiber.Ctx) error {
	txs, err := h.Queries.All(c.Context())
	return h.respondList(c, txs, err)
}

func (h *TransactionHandler) Sent(c *fiber.Ctx) error {
	txs, err := h.Queries.SentBy(c.Context(), c.Params("username"))
	return h.respondList(c, txs, err)
}

func (h *TransactionHandler) Received(c *fiber.Ctx) error {
	txs, err := h.Queries.ReceivedBy(c.Context(), c.Params("username"))
	return h.respondList(c, txs, err)
}

// ForUser returns the latest combined sent/received history, newest first.
func (h *TransactionHandler) ForUser(c *fiber.Ctx) error {
	txs, err := h.Queries.AllFor(c.Context(), c.Params("username"))
	return h.respondList(c, txs, err)
}

func (h *TransactionHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.Queries.Summary(c.Context(), c.Params("username"))
	if err != nil {
		slog.Error("failed to build summary", "error", err, "username", c.Params("username"))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not build summary"})
	}
	return c.JSON(fiber.Map{"income": summary.Income, "expenses": summary.Expenses})
}

func (h *TransactionHandler) respondList(c *fiber.Ctx, txs []domain.Transaction, err error) error {
	if err != nil {
		slog.Error("failed to query transactions", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not fetch transactions"})
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return c.JSON(txs)
}
