package auth

import (
	"context"
	"errors"
	"strings"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// Registrar creates logins. Each new user gets a fresh ledger identity.
type Registrar struct {
	DB *gorm.DB
	// Cost overrides the bcrypt cost; tests use bcrypt.MinCost.
	Cost int
}

// Register validates input and stores a user with a bcrypt password hash.
func (r *Registrar) Register(ctx context.Context, in LoginInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmailFormat
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrWeakPassword
	}

	var existing domain.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cost := r.Cost
	if cost == 0 {
		cost = bcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Email: email, PasswordHash: string(hash)}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	log.Info().Str("user_id", u.UserID.String()).Str("identity", u.Identity).Msg("user registered")
	return u, nil
}
