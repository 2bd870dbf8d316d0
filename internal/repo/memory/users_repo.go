package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo keeps users in process memory. Used by tests and STORE_DRIVER=memory.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // {"id": user}
	byEmail map[string]string    // {"email": id}
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, in user.CreateUserInput) (user.User, error) {
	email := user.NormalizeEmail(in.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	u := user.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),

		CareerRecommendations: []user.CareerRecommendation{},
		MentorMatches:         []user.MentorMatch{},
	}

	r.items[u.ID] = u
	r.byEmail[email] = u.ID

	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(r.items[id]), nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(u).Redacted(), nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, id string, p user.Profile) (user.User, error) {
	return r.mutate(id, func(u *user.User) { u.Profile = p })
}

func (r *UsersRepo) SetCareerRecommendations(_ context.Context, id string, recs []user.CareerRecommendation) (user.User, error) {
	return r.mutate(id, func(u *user.User) { u.CareerRecommendations = append([]user.CareerRecommendation{}, recs...) })
}

func (r *UsersRepo) SetMentorMatches(_ context.Context, id string, matches []user.MentorMatch) (user.User, error) {
	return r.mutate(id, func(u *user.User) { u.MentorMatches = append([]user.MentorMatch{}, matches...) })
}

func (r *UsersRepo) ListByRole(_ context.Context, role user.Role) ([]user.User, error) {
	return r.filter(func(u user.User) bool { return u.Role == role }), nil
}

func (r *UsersRepo) ListMenteesMatchedTo(_ context.Context, mentorID string) ([]user.User, error) {
	return r.filter(func(u user.User) bool {
		if u.Role != user.RoleMentee {
			return false
		}
		return slices.ContainsFunc(u.MentorMatches, func(m user.MentorMatch) bool {
			return m.MentorID == mentorID
		})
	}), nil
}

// Delete exists for tests that simulate a user vanishing behind a live token.
func (r *UsersRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.items[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.items, id)
	}
}

func (r *UsersRepo) Ping(context.Context) error {
	return nil
}

func (r *UsersRepo) mutate(id string, fn func(u *user.User)) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	fn(&u)
	r.items[id] = u

	return clone(u).Redacted(), nil
}

func (r *UsersRepo) filter(keep func(user.User) bool) []user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.User, 0)
	for _, u := range r.items {
		if keep(u) {
			out = append(out, clone(u).Redacted())
		}
	}

	// stable ordering, oldest first
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func clone(u user.User) user.User {
	u.Profile.Skills = slices.Clone(u.Profile.Skills)
	u.Profile.Interests = slices.Clone(u.Profile.Interests)
	u.Profile.Expertise = slices.Clone(u.Profile.Expertise)
	u.CareerRecommendations = slices.Clone(u.CareerRecommendations)
	u.MentorMatches = slices.Clone(u.MentorMatches)
	return u
}
