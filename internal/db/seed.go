package db

import (
	"context"
	"errors"

	"github.com/geocoder89/herapt/internal/config"
	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/geocoder89/herapt/internal/security"
)

type UserSeeder interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, in user.CreateUserInput) (user.User, error)
}

// EnsureSeedMentor creates the demo mentor account when SEED_MENTOR_EMAIL/PASSWORD are set.
// Existing accounts are left untouched.
func EnsureSeedMentor(ctx context.Context, users UserSeeder, cfg config.Config) (bool, error) {
	if cfg.SeedMentorEmail == "" || cfg.SeedMentorPassword == "" {
		return false, nil
	}

	_, err := users.GetByEmail(ctx, cfg.SeedMentorEmail)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.SeedMentorPassword)

	if err != nil {
		return false, err
	}

	_, err = users.Create(ctx, user.CreateUserInput{
		Name:         cfg.SeedMentorName,
		Email:        cfg.SeedMentorEmail,
		PasswordHash: hash,
		Role:         user.RoleMentor,
	})

	if errors.Is(err, user.ErrEmailTaken) {
		// another instance won the race
		return false, nil
	}

	return err == nil, err
}
