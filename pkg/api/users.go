package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// UserResponse представляет публичное состояние учетной записи
type UserResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Active       bool   `json:"active"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// UserListResponse представляет страницу списка пользователей
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// UpdateUserRequest представляет запрос на обновление профиля
// Пустой Password означает "пароль не менять"
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// PasswordResetRequest представляет запрос на начало сброса пароля
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordUpdateRequest представляет смену пароля по reset token
type PasswordUpdateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
