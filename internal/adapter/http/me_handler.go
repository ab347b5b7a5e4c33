package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
)

// MeHandler implements GET /me, resolving the authenticated Principal to its
// full user profile.
type MeHandler struct {
	users entity.UserRepository
}

// NewMeHandler builds a MeHandler.
func NewMeHandler(users entity.UserRepository) *MeHandler {
	return &MeHandler{users: users}
}

// Get handles GET /me.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	user, err := h.users.Get(r.Context(), principal.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}

	Respond(w, http.StatusOK, newUserView(user))
}
