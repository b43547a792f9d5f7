package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/accountd/internal/crypto"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/internal/validation"
	"github.com/iudanet/accountd/pkg/api"
)

// AuthHandler обрабатывает вход и выход
type AuthHandler struct {
	logger *slog.Logger
	users  storage.UserStorage
	tokens *token.Manager
}

// NewAuthHandler создает новый handler для аутентификации
func NewAuthHandler(logger *slog.Logger, users storage.UserStorage, tokens *token.Manager) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		users:  users,
		tokens: tokens,
	}
}

// Login обрабатывает POST /api/v1/auth
// Проверяет пару email+пароль и выдает новый сессионный токен.
// Каждый вход создает независимый токен: параллельные сессии разрешены.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	email := validation.NormalizeEmail(req.Email)

	user, err := h.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Неизвестный email и неверный пароль дают одинаковый ответ,
			// чтобы не допустить перебор аккаунтов
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("email", email))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := crypto.CheckPassword(req.Password, user.PasswordHash); err != nil {
		h.logger.WarnContext(ctx, "login failed: invalid password", slog.String("email", email))
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if !user.Active {
		h.logger.WarnContext(ctx, "login failed: account not activated", slog.String("email", email))
		sendError(h.logger, w, "account is not activated", http.StatusForbidden)
		return
	}

	sessionToken, err := h.tokens.Issue(ctx, user.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue session token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged in",
		slog.String("email", email),
		slog.Int64("user_id", user.ID))

	resp := api.LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Token:    sessionToken,
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/logout
// Всегда отвечает 200: отзыв неизвестного токена — no-op
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if value := BearerToken(r); value != "" {
		if err := h.tokens.Revoke(ctx, value); err != nil {
			h.logger.ErrorContext(ctx, "failed to revoke session token", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	sendJSON(h.logger, w, api.MessageResponse{Message: "logged out"}, http.StatusOK)
}

// BearerToken извлекает bearer токен из заголовка Authorization.
// Возвращает пустую строку, если заголовок отсутствует или имеет другую схему.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}
