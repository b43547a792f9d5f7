// Package token реализует выдачу, проверку и отзыв сессионных токенов.
//
// Токен — это opaque случайная строка, одновременно ключ поиска и
// bearer-секрет. Срок действия скользящий: каждая успешная проверка
// сбрасывает 7-дневный отсчет. Хранилище всегда авторитетно, менеджер
// не кеширует состояние токенов — отзыв виден немедленно.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/storage"
)

// ErrInvalidToken возвращается из Verify для отсутствующего или
// просроченного токена. Различие между "нет такого" и "истек"
// наружу не выдается.
var ErrInvalidToken = errors.New("invalid session token")

// DefaultTTL — скользящее окно валидности токена
const DefaultTTL = 7 * 24 * time.Hour

// tokenBytes дает 32 hex-символа в значении токена
const tokenBytes = 16

// Manager issues, verifies, revokes and sweeps session tokens
type Manager struct {
	logger *slog.Logger
	tokens storage.TokenStorage
	ttl    time.Duration
}

// NewManager creates a new session token manager
// ttl <= 0 falls back to DefaultTTL
func NewManager(logger *slog.Logger, tokens storage.TokenStorage, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		logger: logger,
		tokens: tokens,
		ttl:    ttl,
	}
}

// TTL returns the sliding validity window
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue создает новый токен для пользователя и сохраняет его
// с last_used_at = now. Каждый вызов дает независимый токен:
// несколько параллельных сессий на пользователя разрешены.
func (m *Manager) Issue(ctx context.Context, userID int64) (string, error) {
	value, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	sessionToken := &models.SessionToken{
		Token:      value,
		UserID:     userID,
		LastUsedAt: time.Now(),
	}

	if err := m.tokens.SaveSessionToken(ctx, sessionToken); err != nil {
		return "", fmt.Errorf("failed to persist session token: %w", err)
	}

	return value, nil
}

// Verify проверяет токен и возвращает ID владельца (principal).
// Побочный эффект успешной проверки — обновление last_used_at,
// что и делает окно скользящим.
//
// Два конкурентных Verify одного токена могут оба выиграть и оба
// записать last_used_at — безобидная идемпотентная гонка.
func (m *Manager) Verify(ctx context.Context, value string) (int64, error) {
	sessionToken, err := m.tokens.GetSessionToken(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("failed to look up session token: %w", err)
	}

	now := time.Now()
	if now.Sub(sessionToken.LastUsedAt) >= m.ttl {
		// Просроченный токен неотличим от несуществующего;
		// удалит его очередной Sweep.
		return 0, ErrInvalidToken
	}

	if err := m.tokens.UpdateSessionTokenLastUsed(ctx, value, now); err != nil {
		// Гонка со Sweep: токен могли удалить между чтением и записью.
		if errors.Is(err, storage.ErrTokenNotFound) {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("failed to refresh session token: %w", err)
	}

	return sessionToken.UserID, nil
}

// Revoke удаляет токен. Идемпотентен: отзыв неизвестного или уже
// отозванного токена — no-op, не ошибка.
func (m *Manager) Revoke(ctx context.Context, value string) error {
	err := m.tokens.DeleteSessionToken(ctx, value)
	if err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
		return fmt.Errorf("failed to revoke session token: %w", err)
	}
	return nil
}

// RevokeAll удаляет все токены пользователя. Безопасен при нуле токенов.
// Вызывается при удалении аккаунта и при смене пароля через reset token.
func (m *Manager) RevokeAll(ctx context.Context, userID int64) error {
	deleted, err := m.tokens.DeleteUserSessionTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user session tokens: %w", err)
	}

	if deleted > 0 {
		m.logger.Info("revoked all session tokens",
			slog.Int64("user_id", userID),
			slog.Int("tokens_deleted", deleted))
	}

	return nil
}

// Sweep удаляет все токены, не использовавшиеся дольше TTL
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.ttl)

	deleted, err := m.tokens.DeleteSessionTokensLastUsedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale session tokens: %w", err)
	}

	return deleted, nil
}

// generateToken возвращает 32 hex-символа из crypto/rand.
// Пространство в 128 бит делает коллизию практически невозможной,
// retry-петля не нужна; уникальность дополнительно гарантирует PK в БД.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
