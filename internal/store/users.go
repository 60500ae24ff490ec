package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lzjever/mbos-irp/internal/core"
)

const userColumns = `id, email, username, password_hash, is_admin, team_id, created_at, updated_at`

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsAdmin,
		&u.TeamID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
	IsAdmin      bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (core.User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO irp.users (email, username, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		arg.Email, arg.Username, arg.PasswordHash, arg.IsAdmin)
	return scanUser(row)
}

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM irp.users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM irp.users WHERE email = $1`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM irp.users WHERE username = $1`, username)
	return scanUser(row)
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+` FROM irp.users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []core.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) ListUsersByTeam(ctx context.Context, teamID int64) ([]core.User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+` FROM irp.users WHERE team_id = $1 ORDER BY id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []core.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserTeam assigns the user to a team; a nil teamID clears the
// assignment.
func (q *Queries) SetUserTeam(ctx context.Context, userID int64, teamID *int64) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE irp.users SET team_id = $2, updated_at = now() WHERE id = $1`,
		userID, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
