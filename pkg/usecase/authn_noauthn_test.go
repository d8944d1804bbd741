package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
)

func TestNoAuthnUseCase(t *testing.T) {
	sub := "dev-user"
	email := "test@example.com"
	name := "Test User"

	uc := usecase.NewNoAuthnUseCase(sub, email, name)

	t.Run("ValidateToken returns specified user", func(t *testing.T) {
		user, err := uc.ValidateToken(context.Background(), "")
		gt.NoError(t, err).Required()

		gt.Value(t, user.Sub).Equal(sub)
		gt.Value(t, user.Email).Equal(email)
		gt.Value(t, user.Name).Equal(name)
	})

	t.Run("IsNoAuthn returns true", func(t *testing.T) {
		gt.Bool(t, uc.IsNoAuthn()).True()
	})
}
