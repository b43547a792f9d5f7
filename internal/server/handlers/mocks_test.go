package handlers

import (
	"context"
	"time"

	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/storage"
)

// mockUserStorage — in-memory реализация storage.UserStorage для тестов
type mockUserStorage struct {
	users  map[int64]*models.User
	nextID int64

	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{
		users:  make(map[int64]*models.User),
		nextID: 1,
	}
}

func (m *mockUserStorage) CreateUser(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return storage.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserStorage) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	user, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUserByActivationToken(_ context.Context, token string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if token != "" && user.ActivationToken == token {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUserByResetToken(_ context.Context, token string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if token != "" && user.ResetToken == token {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) UpdateUser(_ context.Context, user *models.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	for id, existing := range m.users {
		if id != user.ID && existing.Email == user.Email {
			return storage.ErrUserAlreadyExists
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserStorage) DeleteUser(_ context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[id]; !ok {
		return storage.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserStorage) ListUsers(_ context.Context, offset, limit int) ([]*models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var all []*models.User
	for id := int64(1); id < m.nextID; id++ {
		if user, ok := m.users[id]; ok {
			copied := *user
			all = append(all, &copied)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// mockTokenStorage — in-memory реализация storage.TokenStorage для тестов
type mockTokenStorage struct {
	tokens map[string]*models.SessionToken

	saveErr   error
	getErr    error
	updateErr error
	deleteErr error
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{tokens: make(map[string]*models.SessionToken)}
}

func (m *mockTokenStorage) SaveSessionToken(_ context.Context, token *models.SessionToken) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	stored := *token
	m.tokens[token.Token] = &stored
	return nil
}

func (m *mockTokenStorage) GetSessionToken(_ context.Context, value string) (*models.SessionToken, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	token, ok := m.tokens[value]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (m *mockTokenStorage) UpdateSessionTokenLastUsed(_ context.Context, value string, lastUsed time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	token, ok := m.tokens[value]
	if !ok {
		return storage.ErrTokenNotFound
	}
	token.LastUsedAt = lastUsed
	return nil
}

func (m *mockTokenStorage) DeleteSessionToken(_ context.Context, value string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.tokens[value]; !ok {
		return storage.ErrTokenNotFound
	}
	delete(m.tokens, value)
	return nil
}

func (m *mockTokenStorage) DeleteUserSessionTokens(_ context.Context, userID int64) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	deleted := 0
	for value, token := range m.tokens {
		if token.UserID == userID {
			delete(m.tokens, value)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockTokenStorage) DeleteSessionTokensLastUsedBefore(_ context.Context, cutoff time.Time) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	deleted := 0
	for value, token := range m.tokens {
		if token.LastUsedAt.Before(cutoff) {
			delete(m.tokens, value)
			deleted++
		}
	}
	return deleted, nil
}

// mockMailer записывает отправленные письма вместо реальной доставки
type mockMailer struct {
	activations map[string]string // email -> token
	resets      map[string]string

	activationErr error
	resetErr      error
}

func newMockMailer() *mockMailer {
	return &mockMailer{
		activations: make(map[string]string),
		resets:      make(map[string]string),
	}
}

func (m *mockMailer) SendActivation(email, token string) error {
	if m.activationErr != nil {
		return m.activationErr
	}
	m.activations[email] = token
	return nil
}

func (m *mockMailer) SendPasswordReset(email, token string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets[email] = token
	return nil
}
