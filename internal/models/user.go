package models

import "time"

// User представляет учетную запись в системе
type User struct {
	ID           int64     `json:"id"`            // целочисленный ID, назначается хранилищем
	Username     string    `json:"username"`      // отображаемое имя
	Email        string    `json:"email"`         // уникальный email
	PasswordHash string    `json:"-"`             // bcrypt хеш пароля
	Active       bool      `json:"active"`        // false до подтверждения email
	ProfileImage string    `json:"profile_image"` // ссылка на файл изображения профиля (может быть пустой)
	CreatedAt    time.Time `json:"created_at"`    // время создания
	UpdatedAt    time.Time `json:"updated_at"`    // время последнего обновления

	// ActivationToken выставляется при регистрации и очищается ровно один раз
	// при успешной активации. ResetToken живет только на время процедуры
	// сброса пароля.
	ActivationToken string `json:"-"`
	ResetToken      string `json:"-"`
}

// SessionToken представляет opaque bearer токен сессии.
// Значение токена одновременно и ключ поиска, и сам секрет:
// знание значения — это и есть аутентификация.
type SessionToken struct {
	Token      string    `json:"token"`        // 32 hex-символа, crypto/rand
	UserID     int64     `json:"user_id"`      // владелец
	LastUsedAt time.Time `json:"last_used_at"` // обновляется при каждой успешной проверке
}
