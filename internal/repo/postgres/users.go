package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBObserver records latency and error class per logical operation.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewUsersRepo(pool *pgxpool.Pool, obs DBObserver) *UsersRepo {
	if obs == nil {
		obs = noopObserver{}
	}
	return &UsersRepo{pool: pool, obs: obs}
}

const userColumns = `id, name, email, password_hash, role, profile, career_recommendations, mentor_matches, created_at`

func (r *UsersRepo) Create(ctx context.Context, in user.CreateUserInput) (user.User, error) {
	u := user.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        user.NormalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),

		CareerRecommendations: []user.CareerRecommendation{},
		MentorMatches:         []user.MentorMatch{},
	}

	err := r.obs.ObserveDB("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, role, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			user.NormalizeEmail(email),
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.obs.ObserveDB("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
		))
		return err
	})

	return u.Redacted(), err
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error) {
	return r.updateJSON(ctx, "users.update_profile", "profile", id, p)
}

// History columns are overwritten, never appended.
func (r *UsersRepo) SetCareerRecommendations(ctx context.Context, id string, recs []user.CareerRecommendation) (user.User, error) {
	if recs == nil {
		recs = []user.CareerRecommendation{}
	}
	return r.updateJSON(ctx, "users.set_recommendations", "career_recommendations", id, recs)
}

func (r *UsersRepo) SetMentorMatches(ctx context.Context, id string, matches []user.MentorMatch) (user.User, error) {
	if matches == nil {
		matches = []user.MentorMatch{}
	}
	return r.updateJSON(ctx, "users.set_matches", "mentor_matches", id, matches)
}

func (r *UsersRepo) ListByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	return r.list(ctx, "users.list_by_role",
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at ASC, id ASC`,
		string(role),
	)
}

func (r *UsersRepo) ListMenteesMatchedTo(ctx context.Context, mentorID string) ([]user.User, error) {
	return r.list(ctx, "users.list_mentees_for_mentor",
		`SELECT `+userColumns+` FROM users
		WHERE role = 'mentee'
		AND mentor_matches @> jsonb_build_array(jsonb_build_object('mentorId', $1::text))
		ORDER BY created_at ASC, id ASC`,
		mentorID,
	)
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// column is always one of the fixed jsonb column names above, never user input.
func (r *UsersRepo) updateJSON(ctx context.Context, op, column, id string, value any) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return user.User{}, fmt.Errorf("encode %s: %w", column, err)
	}

	var u user.User

	err = r.obs.ObserveDB(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET `+column+` = $2::jsonb WHERE id = $1 RETURNING `+userColumns,
			id, raw,
		))
		return err
	})

	return u.Redacted(), err
}

func (r *UsersRepo) list(ctx context.Context, op, query string, args ...any) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.obs.ObserveDB(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u.Redacted())
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u                          user.User
		role                       string
		profile, recs, mentorMatch []byte
	)

	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &profile, &recs, &mentorMatch, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	u.Role = user.Role(role)

	if err := unmarshalIfPresent(profile, &u.Profile); err != nil {
		return user.User{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := unmarshalIfPresent(recs, &u.CareerRecommendations); err != nil {
		return user.User{}, fmt.Errorf("decode career_recommendations: %w", err)
	}
	if err := unmarshalIfPresent(mentorMatch, &u.MentorMatches); err != nil {
		return user.User{}, fmt.Errorf("decode mentor_matches: %w", err)
	}

	return u, nil
}

func unmarshalIfPresent(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
