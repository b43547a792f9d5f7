package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/accountd/internal/crypto"
	"github.com/iudanet/accountd/internal/server/handlers"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/internal/validation"
)

// AuthMiddleware — шлюз аутентификации. Превращает Authorization
// заголовок в principal в контексте запроса и НИКОГДА не отклоняет
// запрос сам: отсутствие principal — не ошибка, требовать его или нет,
// решает каждый endpoint.
//
// Bearer путь: opaque токен проверяется менеджером (каждый запрос
// ходит в хранилище — отзыв виден немедленно, проверка сдвигает
// скользящее окно).
// Basic путь: inline email+пароль, для endpoint'ов списка и обновления;
// неактивный или несуществующий аккаунт principal не получает.
func AuthMiddleware(logger *slog.Logger, tokens *token.Manager, users storage.UserStorage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, credential, found := strings.Cut(authHeader, " ")
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			var userID int64
			var ok bool

			switch {
			case strings.EqualFold(scheme, "Bearer"):
				userID, ok = verifyBearer(r.Context(), logger, tokens, credential)
			case strings.EqualFold(scheme, "Basic"):
				userID, ok = verifyBasic(r.Context(), logger, users, credential)
			}

			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), handlers.UserIDKey, userID)

			logger.Debug("request authenticated", "user_id", userID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyBearer(ctx context.Context, logger *slog.Logger, tokens *token.Manager, value string) (int64, bool) {
	userID, err := tokens.Verify(ctx, value)
	if err != nil {
		if !errors.Is(err, token.ErrInvalidToken) {
			logger.Error("session token verification failed", "error", err)
		}
		return 0, false
	}
	return userID, true
}

func verifyBasic(ctx context.Context, logger *slog.Logger, users storage.UserStorage, credential string) (int64, bool) {
	decoded, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return 0, false
	}

	email, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return 0, false
	}

	user, err := users.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			logger.Error("basic credential lookup failed", "error", err)
		}
		return 0, false
	}

	if !user.Active {
		return 0, false
	}

	if err := crypto.CheckPassword(password, user.PasswordHash); err != nil {
		return 0, false
	}

	return user.ID, true
}
