package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vidtube-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

const maxUpdateAttempts = 5

var errTooManyConflicts = errors.New("document kept changing during update")

type userDocument struct {
	ID           string    `json:"_id"`
	Rev          string    `json:"_rev,omitempty"`
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Fullname     string    `json:"fullname"`
	Password     string    `json:"password"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"cover_image"`
	RefreshToken *string   `json:"refresh_token"`
	WatchHistory []string  `json:"watch_history"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// claimDocument reserves a unique value. CouchDB rejects a second Put on the same _id,
// which is what makes username and email unique.
type claimDocument struct {
	ID     string `json:"_id"`
	Rev    string `json:"_rev,omitempty"`
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type userRepository struct {
	client *kivik.Client
	dbName string
	now    func() time.Time
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		client: client,
		dbName: dbName,
		now:    time.Now,
	}
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func usernameClaimID(username string) string {
	return fmt.Sprintf("username:%s", domain.NormalizeUsername(username))
}

func emailClaimID(email string) string {
	return fmt.Sprintf("email:%s", domain.NormalizeEmail(email))
}

// EnsureUserIndexes creates the Mango indexes used by FindByUsernameOrEmail.
func EnsureUserIndexes(ctx context.Context, client *kivik.Client, dbName string) error {
	db := client.DB(dbName)

	indexes := map[string][]string{
		"user-username": {"type", "username"},
		"user-email":    {"type", "email"},
	}
	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "users", name, index); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}
	return nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	usernameRev, err := r.claim(ctx, usernameClaimID(user.Username), user.ID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return conflict("username")
		}
		return upstream(err)
	}

	emailRev, err := r.claim(ctx, emailClaimID(user.Email), user.ID)
	if err != nil {
		r.release(ctx, usernameClaimID(user.Username), usernameRev)
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return conflict("email")
		}
		return upstream(err)
	}

	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	db := r.client.DB(r.dbName)
	doc := toDocument(user, "")
	if _, err := db.Put(ctx, doc.ID, doc); err != nil {
		r.release(ctx, usernameClaimID(user.Username), usernameRev)
		r.release(ctx, emailClaimID(user.Email), emailRev)
		return upstream(fmt.Errorf("failed to create user: %w", err))
	}

	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	var or []map[string]interface{}
	if username != "" {
		or = append(or, map[string]interface{}{"username": domain.NormalizeUsername(username)})
	}
	if email != "" {
		or = append(or, map[string]interface{}{"email": domain.NormalizeEmail(email)})
	}
	if len(or) == 0 {
		return nil, notFound()
	}

	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": "user",
			"$or":  or,
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, upstream(fmt.Errorf("failed to query user: %w", err))
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, notFound()
	}

	var doc userDocument
	if err := rows.ScanDoc(&doc); err != nil {
		return nil, upstream(fmt.Errorf("failed to scan user: %w", err))
	}

	return doc.toDomain(), nil
}

// UpdateFields relies on CouchDB revisions: a write against a stale _rev fails with 409,
// after which the record is re-read and the condition evaluated again.
func (r *userRepository) UpdateFields(ctx context.Context, id string, update domain.UserUpdate, cond *domain.UpdateCondition) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, err := r.getDocument(ctx, id)
		if err != nil {
			return nil, err
		}

		user := doc.toDomain()
		if !cond.Matches(user) {
			return nil, ErrPreconditionFailed
		}

		oldEmail := user.Email
		var newEmailRev string
		emailChanged := update.Email != nil && domain.NormalizeEmail(*update.Email) != domain.NormalizeEmail(oldEmail)
		if emailChanged {
			newEmailRev, err = r.claim(ctx, emailClaimID(*update.Email), id)
			if err != nil {
				if kivik.HTTPStatus(err) == http.StatusConflict {
					return nil, conflict("email")
				}
				return nil, upstream(err)
			}
		}

		update.Apply(user, r.now())

		next := toDocument(user, doc.Rev)
		if _, err := db.Put(ctx, next.ID, next); err != nil {
			if emailChanged {
				r.release(ctx, emailClaimID(*update.Email), newEmailRev)
			}
			if kivik.HTTPStatus(err) == http.StatusConflict {
				continue
			}
			return nil, upstream(fmt.Errorf("failed to update user: %w", err))
		}

		if emailChanged {
			r.releaseCurrent(ctx, emailClaimID(oldEmail))
		}

		return user, nil
	}

	return nil, upstream(errTooManyConflicts)
}

func (r *userRepository) getDocument(ctx context.Context, id string) (*userDocument, error) {
	db := r.client.DB(r.dbName)

	var doc userDocument
	if err := db.Get(ctx, userDocID(id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, notFound()
		}
		return nil, upstream(fmt.Errorf("failed to find user by ID: %w", err))
	}
	return &doc, nil
}

func (r *userRepository) claim(ctx context.Context, claimID, userID string) (string, error) {
	db := r.client.DB(r.dbName)

	return db.Put(ctx, claimID, claimDocument{
		ID:     claimID,
		Type:   "claim",
		UserID: userID,
	})
}

func (r *userRepository) release(ctx context.Context, claimID, rev string) {
	db := r.client.DB(r.dbName)
	_, _ = db.Delete(ctx, claimID, rev)
}

func (r *userRepository) releaseCurrent(ctx context.Context, claimID string) {
	db := r.client.DB(r.dbName)

	var doc claimDocument
	if err := db.Get(ctx, claimID).ScanDoc(&doc); err != nil {
		return
	}
	r.release(ctx, claimID, doc.Rev)
}

func upstream(err error) error {
	return domain.Wrap(domain.ErrUpstream, "credential store failure", err)
}

func toDocument(u *domain.User, rev string) *userDocument {
	return &userDocument{
		ID:           userDocID(u.ID),
		Rev:          rev,
		Type:         "user",
		UserID:       u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Fullname:     u.Fullname,
		Password:     u.PasswordHash,
		Avatar:       u.AvatarURL,
		CoverImage:   u.CoverImageURL,
		RefreshToken: u.RefreshToken,
		WatchHistory: u.WatchHistory,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:            d.UserID,
		Username:      d.Username,
		Email:         d.Email,
		Fullname:      d.Fullname,
		PasswordHash:  d.Password,
		AvatarURL:     d.Avatar,
		CoverImageURL: d.CoverImage,
		RefreshToken:  d.RefreshToken,
		WatchHistory:  d.WatchHistory,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
