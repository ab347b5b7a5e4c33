package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/usecase"
)

// AuthHandler implements POST /auth/register and POST /auth/login.
type AuthHandler struct {
	auth *usecase.AuthUseCase
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(auth *usecase.AuthUseCase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	OrgSlug  *string `json:"org_slug,omitempty"`
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`
	Password string  `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

type userView struct {
	ID       string `json:"id"`
	OrgID    string `json:"org_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func newUserView(u *entity.User) userView {
	return userView{ID: u.ID, OrgID: u.OrgID, Email: u.Email, Role: string(u.Role), IsActive: u.IsActive}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), &usecase.RegisterParams{
		OrgSlug:  req.OrgSlug,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	Respond(w, http.StatusCreated, authResponse{User: newUserView(result.User), Token: result.Token})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(w, err)
		return
	}

	Respond(w, http.StatusOK, authResponse{User: newUserView(result.User), Token: result.Token})
}
