package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/logging"
	"vidtube-server/internal/media"
	"vidtube-server/internal/repository"
	"vidtube-server/pkg/hash"
	"vidtube-server/pkg/jwt"

	"github.com/google/uuid"
)

type RegisterInput struct {
	domain.RegisterRequest
	Avatar     *media.File
	CoverImage *media.File
}

type AuthService struct {
	userRepo repository.UserRepository
	issuer   *jwt.Issuer
	media    media.Store
	notifier SessionNotifier
}

func NewAuthService(userRepo repository.UserRepository, issuer *jwt.Issuer, store media.Store, notifier SessionNotifier) *AuthService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &AuthService{
		userRepo: userRepo,
		issuer:   issuer,
		media:    store,
		notifier: notifier,
	}
}

func (s *AuthService) Register(ctx context.Context, in *RegisterInput) (*domain.PublicUser, error) {
	if isBlank(in.Username, in.Email, in.Fullname, in.Password) {
		return nil, invalid("all fields are required")
	}

	username := domain.NormalizeUsername(in.Username)
	email := domain.NormalizeEmail(in.Email)

	existing, err := s.userRepo.FindByUsernameOrEmail(ctx, username, email)
	if err == nil && existing != nil {
		return nil, domain.NewError(domain.ErrConflict, "user with email or username already exists")
	}
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return nil, err
	}

	if in.Avatar == nil {
		return nil, invalid("avatar file is required")
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var uploaded []string
	cleanup := func() {
		for _, url := range uploaded {
			s.discard(ctx, url)
		}
	}

	avatarURL, err := s.media.Upload(ctx, in.Avatar)
	if err != nil {
		return nil, domain.Wrap(domain.ErrValidation, "failed to upload avatar", err)
	}
	uploaded = append(uploaded, avatarURL)

	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.media.Upload(ctx, in.CoverImage)
		if err != nil {
			cleanup()
			return nil, domain.Wrap(domain.ErrValidation, "failed to upload cover image", err)
		}
		uploaded = append(uploaded, coverURL)
	}

	user := &domain.User{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		Fullname:      trim(in.Fullname),
		PasswordHash:  hashedPassword,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		WatchHistory:  []string{},
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		cleanup()
		return nil, err
	}

	logging.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return user.ToPublic(), nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if isBlank(req.Username) && isBlank(req.Email) {
		return nil, invalid("username or email is required")
	}
	if isBlank(req.Password) {
		return nil, invalid("password is required")
	}

	user, err := s.userRepo.FindByUsernameOrEmail(ctx, trim(req.Username), trim(req.Email))
	if err != nil {
		return nil, err
	}

	if !hash.Verify(req.Password, user.PasswordHash) {
		return nil, domain.NewError(domain.ErrUnauthorized, "invalid user credentials")
	}

	accessToken, refreshToken, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	superseded := user.RefreshToken != nil
	updated, err := s.userRepo.UpdateFields(ctx, user.ID, domain.UserUpdate{RefreshToken: &refreshToken}, nil)
	if err != nil {
		return nil, err
	}

	if superseded {
		s.notifier.SessionRevoked(user.ID, RevokeReasonSuperseded)
	}

	return &domain.LoginResponse{
		User:         updated.ToPublic(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout clears the stored refresh token. Calling it on a signed-out user is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if _, err := s.userRepo.UpdateFields(ctx, userID, domain.UserUpdate{ClearRefreshToken: true}, nil); err != nil {
		return err
	}

	s.notifier.SessionRevoked(userID, RevokeReasonLogout)
	return nil
}

// RefreshSession rotates the refresh token. The stored token is replaced only if it still
// equals the presented one, so a token can be redeemed at most once.
func (s *AuthService) RefreshSession(ctx context.Context, token string) (*domain.TokenResponse, error) {
	if isBlank(token) {
		return nil, unauthorized("unauthorized request", nil)
	}

	claims, err := s.issuer.VerifyRefreshToken(token)
	if err != nil {
		return nil, unauthorized("invalid refresh token", err)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID())
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, unauthorized("invalid refresh token", err)
		}
		return nil, err
	}

	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(token)) != 1 {
		return nil, unauthorized("refresh token is expired or used", nil)
	}

	accessToken, refreshToken, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	_, err = s.userRepo.UpdateFields(ctx, user.ID,
		domain.UserUpdate{RefreshToken: &refreshToken},
		&domain.UpdateCondition{RefreshToken: token},
	)
	if err != nil {
		if isPrecondition(err) {
			return nil, unauthorized("refresh token is expired or used", err)
		}
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *domain.ChangePasswordRequest) error {
	if isBlank(req.OldPassword, req.NewPassword) {
		return invalid("old and new password are required")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !hash.Verify(req.OldPassword, user.PasswordHash) {
		return domain.NewError(domain.ErrUnauthorized, "invalid old password")
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	_, err = s.userRepo.UpdateFields(ctx, userID, domain.UserUpdate{PasswordHash: &hashed}, nil)
	return err
}

func (s *AuthService) issueTokens(user *domain.User) (string, string, error) {
	accessToken, err := s.issuer.IssueAccessToken(jwt.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Fullname: user.Fullname,
	})
	if err != nil {
		return "", "", tokenError(err)
	}

	refreshToken, err := s.issuer.IssueRefreshToken(user.ID)
	if err != nil {
		return "", "", tokenError(err)
	}

	return accessToken, refreshToken, nil
}

func (s *AuthService) discard(ctx context.Context, url string) {
	if err := s.media.Delete(ctx, url); err != nil {
		logging.FromContext(ctx).Warn("failed to delete media", "url", url, "error", err)
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
