package usecase

import (
	"context"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
)

// NoAuthnUseCase provides authentication using a specified user (for development/testing)
type NoAuthnUseCase struct {
	sub   string
	email string
	name  string
}

var _ AuthUseCaseInterface = &NoAuthnUseCase{}

// NewNoAuthnUseCase creates a new NoAuthnUseCase instance with specified user info
func NewNoAuthnUseCase(sub, email, name string) *NoAuthnUseCase {
	return &NoAuthnUseCase{
		sub:   sub,
		email: email,
		name:  name,
	}
}

// ValidateToken always returns the specified user, with or without a token
func (uc *NoAuthnUseCase) ValidateToken(ctx context.Context, rawToken string) (*auth.User, error) {
	return &auth.User{Sub: uc.sub, Email: uc.email, Name: uc.name}, nil
}

// IsNoAuthn returns true for NoAuthnUseCase
func (uc *NoAuthnUseCase) IsNoAuthn() bool {
	return true
}
