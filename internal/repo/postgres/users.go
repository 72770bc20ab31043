package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/bugzapp/internal/domain/user"
	"github.com/geocoder89/bugzapp/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) Create(ctx context.Context, in user.NewUser) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, name, email, role, created_at`,
			in.Name, in.Email, in.PasswordHash, in.Role,
		).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

// GetByEmail is the only read that returns the password hash.
func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.get_by_email", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, name, email, password_hash, role, created_at
			FROM users
			WHERE email = $1`,
			email,
		).Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&u.Role,
			&u.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.prom.ObserveDB("users.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, email, role, created_at FROM users WHERE id = $1`,
			id,
		).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.prom.ObserveDB("users.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, name, email, role, created_at FROM users ORDER BY created_at DESC, id DESC`,
		)
		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var u user.User

			err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
			if err != nil {
				return err
			}

			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
