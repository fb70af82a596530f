package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taldoflemis/trattoria/cassa"
)

type UserDirectory struct {
	pool *pgxpool.Pool
}

var _ cassa.UserDirectory = (*UserDirectory)(nil)

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (u *UserDirectory) LookupUser(ctx context.Context, id int64) (cassa.User, bool, error) {
	ctx, span := tracer.Start(ctx, "UserDirectory.LookupUser")
	defer span.End()

	var user cassa.User
	err := u.pool.QueryRow(ctx,
		"SELECT id, email, name, email_verified FROM users WHERE id = $1", id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.EmailVerified)
	if errors.Is(err, pgx.ErrNoRows) {
		return cassa.User{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return cassa.User{}, false, fmt.Errorf("query user %d: %w", id, err)
	}
	return user, true, nil
}
