package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lzjever/mbos-irp/internal/core"
)

const teamColumns = `id, name, COALESCE(description, ''), created_by, created_at, updated_at`

func scanTeam(row pgx.Row) (core.Team, error) {
	var t core.Team
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

type CreateTeamParams struct {
	Name        string
	Description string
	CreatedBy   int64
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (core.Team, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO irp.teams (name, description, created_by)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING `+teamColumns,
		arg.Name, arg.Description, arg.CreatedBy)
	return scanTeam(row)
}

func (q *Queries) GetTeam(ctx context.Context, id int64) (core.Team, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+teamColumns+` FROM irp.teams WHERE id = $1`, id)
	return scanTeam(row)
}

func (q *Queries) GetTeamByName(ctx context.Context, name string) (core.Team, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+teamColumns+` FROM irp.teams WHERE name = $1`, name)
	return scanTeam(row)
}

func (q *Queries) ListTeams(ctx context.Context) ([]core.Team, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+teamColumns+` FROM irp.teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []core.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

type UpdateTeamParams struct {
	ID          int64
	Name        string
	Description string
}

func (q *Queries) UpdateTeam(ctx context.Context, arg UpdateTeamParams) (core.Team, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE irp.teams
		SET name = $2, description = NULLIF($3, ''), updated_at = now()
		WHERE id = $1
		RETURNING `+teamColumns,
		arg.ID, arg.Name, arg.Description)
	return scanTeam(row)
}
