package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alteris-io/guardian/internal/models"
	pkgauth "github.com/alteris-io/guardian/pkg/auth"
)

// UserRepository is the credential collaborator consumed by the auth
// flow. The business CRUD services own the canonical user records; the
// control plane only needs email lookup and creation.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// UserDirectory is an in-memory UserRepository. It stands in for the
// platform's user store in development and tests.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]*models.User // keyed by lowercased email
}

// NewUserDirectory creates an empty directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[string]*models.User)}
}

// GetByEmail looks a user up by email, case-insensitive.
func (d *UserDirectory) GetByEmail(_ context.Context, email string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// Create stores a new user. The caller supplies the password hash.
func (d *UserDirectory) Create(_ context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := d.users[key]; exists {
		return models.ErrBadRequest
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	copied := *user
	d.users[key] = &copied
	return nil
}

// Seed registers a user from plaintext credentials. Intended for
// bootstrap and tests.
func (d *UserDirectory) Seed(email, password, role string) (*models.User, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := d.Create(context.Background(), user); err != nil {
		return nil, err
	}
	return user, nil
}
