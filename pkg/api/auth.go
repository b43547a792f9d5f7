package api

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`    // email пользователя
	Password string `json:"password"` // пароль в открытом виде
}

// LoginResponse представляет ответ на успешный вход
type LoginResponse struct {
	ID       int64  `json:"id"`       // ID пользователя
	Username string `json:"username"` // отображаемое имя
	Token    string `json:"token"`    // opaque сессионный токен (bearer)
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// MessageResponse представляет ответ с информационным сообщением
type MessageResponse struct {
	Message string `json:"message"`
}
