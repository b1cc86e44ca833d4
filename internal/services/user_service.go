package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

// UserService owns user profiles. Ids are the identity provider subject.
type UserService struct {
	store storage.Store
	clock Clock
}

func NewUserService(store storage.Store, clock Clock) *UserService {
	return &UserService{store: store, clock: clock}
}

func (s *UserService) Get(ctx context.Context, id string) (core.User, error) {
	var u core.User
	if err := load(ctx, s.store, storage.Users, id, "user", &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// SignIn creates the user on first login and refreshes the profile afterwards.
func (s *UserService) SignIn(ctx context.Context, id core.Identity) (core.User, error) {
	if id.Subject == "" {
		return core.User{}, core.Unauthorized("identity has no subject")
	}
	now := s.clock.Now()

	existing, err := s.Get(ctx, id.Subject)
	switch {
	case err == nil:
		update := storage.Fields{
			"email":        id.Email,
			"display_name": displayName(id),
			"photo_url":    photo(id.Picture),
			"updated_at":   now,
		}
		if err := s.store.Update(ctx, storage.Users, id.Subject, update); err != nil {
			return core.User{}, core.Upstream("update user", err)
		}
		existing.Email = id.Email
		existing.DisplayName = displayName(id)
		existing.PhotoURL = photo(id.Picture)
		existing.UpdatedAt = now
		return existing, nil
	case errors.Is(err, core.ErrNotFound):
	default:
		return core.User{}, err
	}

	u := core.User{
		ID:          id.Subject,
		Email:       id.Email,
		DisplayName: displayName(id),
		PhotoURL:    photo(id.Picture),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := save(ctx, s.store, storage.Users, u.ID, "user", u); err != nil {
		return core.User{}, err
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// SetFamily points the user at familyID, or clears it when familyID is nil.
func (s *UserService) SetFamily(ctx context.Context, userID string, familyID *string) error {
	err := s.store.Update(ctx, storage.Users, userID, storage.Fields{
		"family_id":  familyID,
		"updated_at": s.clock.Now(),
	})
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound("user")
	}
	return core.Upstream("update user family", err)
}

// Members lists the users of a family in join order.
func (s *UserService) Members(ctx context.Context, familyID string) ([]core.User, error) {
	q := storage.From(storage.Users).
		Where("family_id", storage.Eq, familyID).
		OrderBy("created_at", storage.Asc)
	return queryAll[core.User](ctx, s.store, q, "users")
}

// MemberIDs returns the ids of every member of a family.
func (s *UserService) MemberIDs(ctx context.Context, familyID string) ([]string, error) {
	users, err := s.Members(ctx, familyID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}

func displayName(id core.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	return id.Email
}

func photo(url string) *string {
	if url == "" {
		return nil
	}
	return &url
}
