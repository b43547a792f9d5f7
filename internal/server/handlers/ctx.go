package handlers

import "context"

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения ID аутентифицированного пользователя (principal)
	UserIDKey contextKey = "user_id"
)

// GetUserID извлекает principal из контекста запроса.
// Отсутствие principal — не ошибка само по себе: решает endpoint.
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
