package handler

import (
	"context"
	"net/http"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/media"
	"vidtube-server/internal/middleware"
	"vidtube-server/internal/service"
	"vidtube-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService *service.UserService
	uploads     UploadOptions
	validator   *validator.Validate
}

func NewUserHandler(userService *service.UserService, uploads UploadOptions) *UserHandler {
	return &UserHandler{
		userService: userService,
		uploads:     uploads,
		validator:   validator.New(),
	}
}

func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetCurrentUser(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Message(w, http.StatusOK, user, "Current user fetched successfully")
}

func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := validate(h.validator, req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Message(w, http.StatusOK, user, "Account details updated successfully")
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.userService.UpdateAvatar, "Avatar updated successfully")
}

func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.userService.UpdateCoverImage, "Cover image updated successfully")
}

func (h *UserHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, userID string, file *media.File) (*domain.PublicUser, error),
	message string,
) {
	form, err := readMultipart(w, r, h.uploads, field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.removeAll()

	user, err := update(r.Context(), middleware.GetUserID(r), form.file(field))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Message(w, http.StatusOK, user, message)
}
