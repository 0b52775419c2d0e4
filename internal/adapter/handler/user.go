package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JenwitK/mobilebanking-api/internal/adapter/storage"
	"github.com/JenwitK/mobilebanking-api/internal/core/domain"
	"github.com/JenwitK/mobilebanking-api/internal/core/security"
)

type UserHandler struct {
	Users     storage.UserRepository
	JWTSecret string
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "username and password are required"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not register user"})
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Users.Create(c.Context(), user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrUsernameTaken.Error()})
		}
		slog.Error("failed to create user", "error", err, "username", req.Username)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not register user"})
	}

	slog.Info("user registered", "id", user.ID, "username", user.Username)
	return c.Status(http.StatusCreated).JSON(user)
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	count, err := h.Users.Count(c.Context())
	if err != nil {
		slog.Error("failed to count users", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
	}
	if count == 0 {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": domain.ErrNoUsers.Error()})
	}

	user, err := h.Users.GetByUsername(c.Context(), req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": domain.ErrInvalidCredentials.Error()})
		}
		slog.Error("failed to load user", "error", err, "username", req.Username)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": domain.ErrInvalidCredentials.Error()})
	}

	token, err := security.GenerateToken(user.ID.String(), h.JWTSecret)
	if err != nil {
		slog.Error("failed to generate token", "error", err, "user_id", user.ID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
	}

	return c.JSON(fiber.Map{"user": user, "token": token})
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.Users.List(c.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not list users"})
	}
	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(users)
}

func (h *UserHandler) GetByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	user, err := h.Users.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": domain.ErrUserNotFound.Error()})
		}
		slog.Error("failed to get user", "error", err, "id", id)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not get user"})
	}
	return c.JSON(user)
}

func (h *UserHandler) GetByUsername(c *fiber.Ctx) error {
	user, err := h.Users.GetByUsername(c.Context(), c.Params("name"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": domain.ErrUserNotFound.Error()})
		}
		slog.Error("failed to get user", "error", err, "username", c.Params("name"))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not get user"})
	}
	return c.JSON(user)
}
