package service

import (
	"context"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/logging"
	"vidtube-server/internal/media"
	"vidtube-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	media    media.Store
}

func NewUserService(userRepo repository.UserRepository, store media.Store) *UserService {
	return &UserService{
		userRepo: userRepo,
		media:    store,
	}
}

func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.ToPublic(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateAccountRequest) (*domain.PublicUser, error) {
	if isBlank(req.Fullname, req.Email) {
		return nil, invalid("all fields are required")
	}

	fullname := trim(req.Fullname)
	email := domain.NormalizeEmail(req.Email)

	user, err := s.userRepo.UpdateFields(ctx, userID, domain.UserUpdate{
		Fullname: &fullname,
		Email:    &email,
	}, nil)
	if err != nil {
		return nil, err
	}
	return user.ToPublic(), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID string, file *media.File) (*domain.PublicUser, error) {
	return s.replaceImage(ctx, userID, file, "avatar", func(u *domain.User) string { return u.AvatarURL },
		func(url string) domain.UserUpdate { return domain.UserUpdate{AvatarURL: &url} })
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID string, file *media.File) (*domain.PublicUser, error) {
	return s.replaceImage(ctx, userID, file, "cover image", func(u *domain.User) string { return u.CoverImageURL },
		func(url string) domain.UserUpdate { return domain.UserUpdate{CoverImageURL: &url} })
}

// replaceImage uploads the new image, stores its URL and then drops the previous object.
func (s *UserService) replaceImage(
	ctx context.Context,
	userID string,
	file *media.File,
	label string,
	current func(*domain.User) string,
	update func(url string) domain.UserUpdate,
) (*domain.PublicUser, error) {
	if file == nil {
		return nil, invalid(label + " file is missing")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := current(user)

	url, err := s.media.Upload(ctx, file)
	if err != nil {
		return nil, domain.Wrap(domain.ErrValidation, "failed to upload "+label, err)
	}

	updated, err := s.userRepo.UpdateFields(ctx, userID, update(url), nil)
	if err != nil {
		s.discard(ctx, url)
		return nil, err
	}

	if previous != "" && previous != url {
		s.discard(ctx, previous)
	}

	return updated.ToPublic(), nil
}

func (s *UserService) discard(ctx context.Context, url string) {
	if err := s.media.Delete(ctx, url); err != nil {
		logging.FromContext(ctx).Warn("failed to delete media", "url", url, "error", err)
	}
}
