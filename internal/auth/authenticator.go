package auth

import (
	"context"

	"github.com/mmynk/mealscan/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	// Returns the created user or an error if registration fails.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

// SessionIssuer exchanges credentials for a signed-in Session.
// LocalIssuer does this in process; the remote client does it over RPC.
type SessionIssuer interface {
	Login(ctx context.Context, email, password string) (*Session, error)
}

// LocalIssuer issues sessions from an Authenticator and a JWTManager.
type LocalIssuer struct {
	authenticator Authenticator
	jwtManager    *JWTManager
}

// NewLocalIssuer creates an issuer backed by the given authenticator.
func NewLocalIssuer(authenticator Authenticator, jwtManager *JWTManager) *LocalIssuer {
	return &LocalIssuer{authenticator: authenticator, jwtManager: jwtManager}
}

// Login authenticates the credentials and signs a token for the user.
func (i *LocalIssuer) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := i.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return i.jwtManager.NewSession(user)
}
