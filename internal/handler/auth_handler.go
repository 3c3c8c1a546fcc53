package handler

import (
	"net/http"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/middleware"
	"vidtube-server/internal/service"
	"vidtube-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	authService *service.AuthService
	cookies     CookieOptions
	uploads     UploadOptions
	validator   *validator.Validate
}

func NewAuthHandler(authService *service.AuthService, cookies CookieOptions, uploads UploadOptions) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		uploads:     uploads,
		validator:   validator.New(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := readMultipart(w, r, h.uploads, "avatar", "coverImage")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.removeAll()

	req := domain.RegisterRequest{
		Username: form.value("username"),
		Email:    form.value("email"),
		Fullname: form.value("fullname"),
		Password: form.value("password"),
	}
	if err := validate(h.validator, req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), &service.RegisterInput{
		RegisterRequest: req,
		Avatar:          form.file("avatar"),
		CoverImage:      form.file("coverImage"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Message(w, http.StatusCreated, user, "User registered successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := validate(h.validator, req); err != nil {
		writeError(w, r, err)
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.set(w, loginResp.AccessToken, loginResp.RefreshToken)
	response.Message(w, http.StatusOK, loginResp, "User logged in successfully")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.GetUserID(r)); err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.clear(w)
	response.Message(w, http.StatusOK, struct{}{}, "User logged out")
}

// RefreshToken reads the refresh token from its cookie, falling back to the JSON body.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}

	if token == "" {
		var req domain.RefreshTokenRequest
		if err := decodeOptionalJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.authService.RefreshSession(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.set(w, tokens.AccessToken, tokens.RefreshToken)
	response.Message(w, http.StatusOK, tokens, "Access token refreshed")
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := validate(h.validator, req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), middleware.GetUserID(r), &req); err != nil {
		writeError(w, r, err)
		return
	}

	response.Message(w, http.StatusOK, struct{}{}, "Password changed successfully")
}
