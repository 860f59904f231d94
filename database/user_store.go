package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/irisdrone/pipewatch/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when no user has the requested username.
var ErrUserNotFound = errors.New("user not found")

// UserStore looks up and seeds operator accounts.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByUsername returns the user or ErrUserNotFound.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

// EnsureUser creates the user when missing and reports whether it did.
func (s *UserStore) EnsureUser(ctx context.Context, username, password, email, role string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedBytes),
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return true, nil
}
