package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/mmynk/mealscan/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrEmailExists        = errors.New("email already registered")
)

// UserStorage persists accounts. CreateUser also creates the account's
// default profile (no credits, no free scans used, not premium), so a
// registered user can be fetched by the session store right away.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail and GetUserByID return nil, nil when nothing matches.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator registers and signs in meal-scan accounts with an
// email address and a bcrypt-hashed password. Emails are matched
// case-insensitively.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
	// dummyHash is compared against when the email is unknown so both
	// failure paths take the same time.
	dummyHash []byte
}

func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	a := &PasswordAuthenticator{
		storage: storage,
		cost:    bcrypt.DefaultCost,
	}
	a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mealscan-unknown-account"), a.cost)
	return a
}

// ValidateCredential checks the password length bounds.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	switch {
	case len(credential) < minPasswordLen:
		return ErrWeakPassword
	case len(credential) > maxPasswordLen:
		return ErrPasswordTooLong
	}
	return nil
}

// Register creates an account together with its default profile. An empty
// display name falls back to the local part of the email.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	existing, err := a.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	user := models.NewUser(email, displayName, string(hash))
	if err := a.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate returns the account for email if credential matches.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials;
// storage failures are returned as they are.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := a.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	hash := a.dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(credential)); err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// normalizeEmail trims and lower-cases a bare address such as
// "Alice@Example.com". Display-name forms like "Alice <a@b.c>" are rejected.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
