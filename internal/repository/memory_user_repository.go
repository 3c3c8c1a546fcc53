package repository

import (
	"context"
	"sync"
	"time"

	"vidtube-server/internal/domain"
)

type memoryUserRepository struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

// NewMemoryUserRepository returns a process-local store with the same uniqueness and
// compare-and-set guarantees as the CouchDB store.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := domain.NormalizeUsername(user.Username)
	email := domain.NormalizeEmail(user.Email)

	if _, ok := r.byUsername[username]; ok {
		return conflict("username")
	}
	if _, ok := r.byEmail[email]; ok {
		return conflict("email")
	}

	now := r.now()
	stored := cloneUser(user)
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.users[user.ID] = stored
	r.byUsername[username] = user.ID
	r.byEmail[email] = user.ID

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, notFound()
	}
	return cloneUser(user), nil
}

func (r *memoryUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if username != "" {
		if id, ok := r.byUsername[domain.NormalizeUsername(username)]; ok {
			return cloneUser(r.users[id]), nil
		}
	}
	if email != "" {
		if id, ok := r.byEmail[domain.NormalizeEmail(email)]; ok {
			return cloneUser(r.users[id]), nil
		}
	}
	return nil, notFound()
}

func (r *memoryUserRepository) UpdateFields(ctx context.Context, id string, update domain.UserUpdate, cond *domain.UpdateCondition) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, notFound()
	}
	if !cond.Matches(user) {
		return nil, ErrPreconditionFailed
	}

	oldEmail := domain.NormalizeEmail(user.Email)
	if update.Email != nil {
		newEmail := domain.NormalizeEmail(*update.Email)
		if owner, taken := r.byEmail[newEmail]; taken && owner != id {
			return nil, conflict("email")
		}
	}

	update.Apply(user, r.now())

	if update.Email != nil {
		newEmail := domain.NormalizeEmail(user.Email)
		if newEmail != oldEmail {
			delete(r.byEmail, oldEmail)
			r.byEmail[newEmail] = id
		}
	}

	return cloneUser(user), nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		c.RefreshToken = &token
	}
	if u.WatchHistory != nil {
		c.WatchHistory = append([]string(nil), u.WatchHistory...)
	}
	return &c
}
