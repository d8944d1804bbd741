package http

import (
	"net/http"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
)

// authMeHandler returns the caller. requireUser guarantees one is present.
func authMeHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeData(r.Context(), w, userResponse{
		Sub:   user.Sub,
		Email: user.Email,
		Name:  user.Name,
	})
}
