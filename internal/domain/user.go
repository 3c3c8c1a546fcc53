package domain

import (
	"strings"
	"time"
)

type User struct {
	ID            string
	Username      string
	Email         string
	Fullname      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  *string
	WatchHistory  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the sanitized form of User returned to clients.
type PublicUser struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Fullname     string    `json:"fullname"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	WatchHistory []string  `json:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) ToPublic() *PublicUser {
	history := u.WatchHistory
	if history == nil {
		history = []string{}
	}
	return &PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Fullname:     u.Fullname,
		Avatar:       u.AvatarURL,
		CoverImage:   u.CoverImageURL,
		WatchHistory: history,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// UserUpdate lists the fields UpdateFields may change. Nil pointers are left untouched.
type UserUpdate struct {
	Fullname          *string
	Email             *string
	PasswordHash      *string
	AvatarURL         *string
	CoverImageURL     *string
	RefreshToken      *string
	ClearRefreshToken bool
}

// UpdateCondition is checked atomically against the stored record before an update is applied.
type UpdateCondition struct {
	RefreshToken string
}

func (c *UpdateCondition) Matches(u *User) bool {
	if c == nil {
		return true
	}
	return u.RefreshToken != nil && *u.RefreshToken == c.RefreshToken
}

// Apply mutates u according to the update and stamps UpdatedAt.
func (up UserUpdate) Apply(u *User, now time.Time) {
	if up.Fullname != nil {
		u.Fullname = *up.Fullname
	}
	if up.Email != nil {
		u.Email = *up.Email
	}
	if up.PasswordHash != nil {
		u.PasswordHash = *up.PasswordHash
	}
	if up.AvatarURL != nil {
		u.AvatarURL = *up.AvatarURL
	}
	if up.CoverImageURL != nil {
		u.CoverImageURL = *up.CoverImageURL
	}
	if up.RefreshToken != nil {
		token := *up.RefreshToken
		u.RefreshToken = &token
	}
	if up.ClearRefreshToken {
		u.RefreshToken = nil
	}
	u.UpdatedAt = now
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Fullname string `json:"fullname" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest accepts either username or email.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=Username"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         *PublicUser `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type UpdateAccountRequest struct {
	Fullname string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}
