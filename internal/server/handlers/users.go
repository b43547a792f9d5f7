package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/accountd/internal/crypto"
	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/files"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/internal/validation"
	"github.com/iudanet/accountd/pkg/api"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxImageBytes   = 10 << 20 // 10 MB
)

// Mailer отправляет письма активации и сброса пароля
type Mailer interface {
	SendActivation(email, token string) error
	SendPasswordReset(email, token string) error
}

// UsersHandler обрабатывает регистрацию, активацию, сброс пароля
// и операции над профилем
type UsersHandler struct {
	logger *slog.Logger
	users  storage.UserStorage
	tokens *token.Manager
	mailer Mailer
	images *files.Store
}

// NewUsersHandler создает новый handler для учетных записей
func NewUsersHandler(logger *slog.Logger, users storage.UserStorage, tokens *token.Manager, mailer Mailer, images *files.Store) *UsersHandler {
	return &UsersHandler{
		logger: logger,
		users:  users,
		tokens: tokens,
		mailer: mailer,
		images: images,
	}
}

// Register обрабатывает POST /api/v1/users
// Создание пользователя и отправка письма активации — одно логическое
// действие: при ошибке доставки созданная запись удаляется.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	email := validation.NormalizeEmail(req.Email)
	if err := validation.ValidateEmail(email); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	activationToken, err := newOpaqueToken()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate activation token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := &models.User{
		Username:        req.Username,
		Email:           email,
		PasswordHash:    passwordHash,
		Active:          false,
		ActivationToken: activationToken,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "registration failed: email taken", slog.String("email", email))
			sendError(h.logger, w, "email already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendActivation(email, activationToken); err != nil {
		// Откатываем регистрацию: либо аккаунт и письмо, либо ничего
		if delErr := h.users.DeleteUser(ctx, user.ID); delErr != nil {
			h.logger.ErrorContext(ctx, "failed to roll back user after email failure",
				slog.Int64("user_id", user.ID), slog.Any("error", delErr))
		}
		h.logger.ErrorContext(ctx, "failed to send activation email",
			slog.String("email", email), slog.Any("error", err))
		sendError(h.logger, w, "failed to send activation email", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered",
		slog.String("email", email),
		slog.Int64("user_id", user.ID))

	resp := api.RegisterResponse{
		ID:      user.ID,
		Message: "activation email sent",
	}

	sendJSON(h.logger, w, resp, http.StatusCreated)
}

// Activate обрабатывает POST /api/v1/users/activation/{token}
// Аккаунт становится активным ровно один раз: токен очищается при успехе
func (h *UsersHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activationToken := r.PathValue("token")
	if activationToken == "" {
		sendError(h.logger, w, "activation token is required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByActivationToken(ctx, activationToken)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "activation failed: unknown token")
			sendError(h.logger, w, "invalid activation token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user by activation token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	user.Active = true
	user.ActivationToken = ""

	if err := h.users.UpdateUser(ctx, user); err != nil {
		h.logger.ErrorContext(ctx, "failed to activate user",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user activated", slog.Int64("user_id", user.ID))

	sendJSON(h.logger, w, api.MessageResponse{Message: "account activated"}, http.StatusOK)
}

// RequestPasswordReset обрабатывает POST /api/v1/users/reset
// Ответ для неизвестного email не отличается от успешного,
// чтобы endpoint нельзя было использовать для перебора аккаунтов
func (h *UsersHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	email := validation.NormalizeEmail(req.Email)
	genericResp := api.MessageResponse{Message: "password reset email sent"}

	user, err := h.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.DebugContext(ctx, "password reset for unknown email", slog.String("email", email))
			sendJSON(h.logger, w, genericResp, http.StatusOK)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resetToken, err := newOpaqueToken()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate reset token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	user.ResetToken = resetToken
	if err := h.users.UpdateUser(ctx, user); err != nil {
		h.logger.ErrorContext(ctx, "failed to store reset token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendPasswordReset(email, resetToken); err != nil {
		// Недоставленный токен не должен оставаться действительным
		user.ResetToken = ""
		if updErr := h.users.UpdateUser(ctx, user); updErr != nil {
			h.logger.ErrorContext(ctx, "failed to clear reset token after email failure",
				slog.Int64("user_id", user.ID), slog.Any("error", updErr))
		}
		h.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("email", email), slog.Any("error", err))
		sendError(h.logger, w, "failed to send password reset email", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "password reset requested", slog.Int64("user_id", user.ID))

	sendJSON(h.logger, w, genericResp, http.StatusOK)
}

// UpdatePassword обрабатывает POST /api/v1/users/password
// Успешная смена пароля отзывает все сессии пользователя:
// каждое устройство должно аутентифицироваться заново
func (h *UsersHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.PasswordUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Token == "" {
		sendError(h.logger, w, "reset token is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "password update failed: unknown reset token")
			sendError(h.logger, w, "invalid reset token", http.StatusForbidden)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user by reset token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	user.PasswordHash = passwordHash
	user.ResetToken = ""

	if err := h.users.UpdateUser(ctx, user); err != nil {
		h.logger.ErrorContext(ctx, "failed to update password",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.tokens.RevokeAll(ctx, user.ID); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke sessions after password change",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "password updated", slog.Int64("user_id", user.ID))

	sendJSON(h.logger, w, api.MessageResponse{Message: "password updated"}, http.StatusOK)
}

// List обрабатывает GET /api/v1/users?page=&size=
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := GetUserID(ctx); !ok {
		sendError(h.logger, w, "forbidden", http.StatusForbidden)
		return
	}

	page, size := paginationParams(r)

	users, total, err := h.users.ListUsers(ctx, (page-1)*size, size)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.UserListResponse{
		Users: make([]api.UserResponse, 0, len(users)),
		Total: total,
		Page:  page,
		Size:  size,
	}
	for _, user := range users {
		resp.Users = append(resp.Users, toUserResponse(user))
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, toUserResponse(user), http.StatusOK)
}

// Update обрабатывает PUT /api/v1/users/{id}
// Непустой password дополнительно меняет пароль
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	var req api.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	email := validation.NormalizeEmail(req.Email)
	if err := validation.ValidateEmail(email); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Password != "" {
		if err := validation.ValidatePassword(req.Password); err != nil {
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	user.Username = req.Username
	user.Email = email
	if req.Password != "" {
		passwordHash, err := crypto.HashPassword(req.Password)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
			return
		}
		user.PasswordHash = passwordHash
	}

	if err := h.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			sendError(h.logger, w, "email already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to update user",
			slog.Int64("user_id", userID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user updated", slog.Int64("user_id", userID))

	sendJSON(h.logger, w, toUserResponse(user), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/users/{id}
// Токены удаляются каскадом на уровне схемы, но RevokeAll вызывается
// явно: ни один сессионный токен не должен пережить владельца
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete user",
			slog.Int64("user_id", userID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.tokens.RevokeAll(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke sessions after account deletion",
			slog.Int64("user_id", userID), slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "user deleted", slog.Int64("user_id", userID))

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage обрабатывает POST /api/v1/users/{id}/image
// Файл сохраняется на диске под случайным именем, прежнее изображение удаляется
func (h *UsersHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		sendError(h.logger, w, "image file is required", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	ref, err := h.images.Save(file, header.Filename)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to store profile image", slog.Any("error", err))
		sendError(h.logger, w, "failed to store image", http.StatusInternalServerError)
		return
	}

	oldRef := user.ProfileImage
	user.ProfileImage = ref

	if err := h.users.UpdateUser(ctx, user); err != nil {
		_ = h.images.Remove(ref)
		h.logger.ErrorContext(ctx, "failed to update user image",
			slog.Int64("user_id", userID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if oldRef != "" {
		if err := h.images.Remove(oldRef); err != nil {
			h.logger.WarnContext(ctx, "failed to remove previous profile image",
				slog.String("ref", oldRef), slog.Any("error", err))
		}
	}

	h.logger.InfoContext(ctx, "profile image updated", slog.Int64("user_id", userID))

	sendJSON(h.logger, w, toUserResponse(user), http.StatusOK)
}

// GetImage обрабатывает GET /api/v1/users/{id}/image
func (h *UsersHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := pathUserID(r)
	if err != nil {
		sendError(h.logger, w, "invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if user.ProfileImage == "" {
		sendError(h.logger, w, "user has no profile image", http.StatusNotFound)
		return
	}

	path, err := h.images.Path(user.ProfileImage)
	if err != nil {
		sendError(h.logger, w, "image not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, path)
}

// requireSelf проверяет, что запрос аутентифицирован и principal
// совпадает с пользователем из пути. Несовпадение и отсутствие
// principal неразличимы для клиента: оба дают 403.
func (h *UsersHandler) requireSelf(w http.ResponseWriter, r *http.Request) (int64, bool) {
	targetID, err := pathUserID(r)
	if err != nil {
		sendError(h.logger, w, "invalid user id", http.StatusBadRequest)
		return 0, false
	}

	principal, ok := GetUserID(r.Context())
	if !ok || principal != targetID {
		sendError(h.logger, w, "forbidden", http.StatusForbidden)
		return 0, false
	}

	return targetID, true
}

func pathUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func paginationParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	return page, size
}

func toUserResponse(user *models.User) api.UserResponse {
	return api.UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Active:       user.Active,
		ProfileImage: user.ProfileImage,
	}
}
