package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lzjever/mbos-irp/internal/core"
)

const credentialColumns = `id, team_id, access_key_id_sealed, secret_key_sealed, session_token_sealed, region, is_active, created_by, created_at, updated_at`

func scanCredential(row pgx.Row) (core.TeamCredential, error) {
	var c core.TeamCredential
	err := row.Scan(&c.ID, &c.TeamID, &c.AccessKeyIDSealed, &c.SecretKeySealed,
		&c.SessionTokenSealed, &c.Region, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

type UpsertCredentialParams struct {
	TeamID             *int64 // nil is the global fallback row
	AccessKeyIDSealed  string
	SecretKeySealed    string
	SessionTokenSealed string
	Region             string
	CreatedBy          int64
}

// UpsertCredential creates or replaces the credential row for a team.
// One row per team; the team_id IS NULL row is the global fallback,
// which the partial unique constraint cannot cover, so NULL is handled
// with an explicit update-then-insert.
func (q *Queries) UpsertCredential(ctx context.Context, arg UpsertCredentialParams) (core.TeamCredential, error) {
	if arg.TeamID == nil {
		row := q.db.QueryRow(ctx, `
			UPDATE irp.team_credentials
			SET access_key_id_sealed = $1, secret_key_sealed = $2, session_token_sealed = $3,
			    region = $4, is_active = true, created_by = $5, updated_at = now()
			WHERE team_id IS NULL
			RETURNING `+credentialColumns,
			arg.AccessKeyIDSealed, arg.SecretKeySealed, arg.SessionTokenSealed, arg.Region, arg.CreatedBy)
		c, err := scanCredential(row)
		if !errors.Is(err, ErrNotFound) {
			return c, err
		}
		row = q.db.QueryRow(ctx, `
			INSERT INTO irp.team_credentials (team_id, access_key_id_sealed, secret_key_sealed, session_token_sealed, region, created_by)
			VALUES (NULL, $1, $2, $3, $4, $5)
			RETURNING `+credentialColumns,
			arg.AccessKeyIDSealed, arg.SecretKeySealed, arg.SessionTokenSealed, arg.Region, arg.CreatedBy)
		return scanCredential(row)
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO irp.team_credentials (team_id, access_key_id_sealed, secret_key_sealed, session_token_sealed, region, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_id) DO UPDATE
		SET access_key_id_sealed = EXCLUDED.access_key_id_sealed,
		    secret_key_sealed = EXCLUDED.secret_key_sealed,
		    session_token_sealed = EXCLUDED.session_token_sealed,
		    region = EXCLUDED.region,
		    is_active = true,
		    created_by = EXCLUDED.created_by,
		    updated_at = now()
		RETURNING `+credentialColumns,
		arg.TeamID, arg.AccessKeyIDSealed, arg.SecretKeySealed, arg.SessionTokenSealed, arg.Region, arg.CreatedBy)
	return scanCredential(row)
}

// GetCredentialForTeam returns the team's active credential row, or the
// global fallback when the team has none.
func (q *Queries) GetCredentialForTeam(ctx context.Context, teamID int64) (core.TeamCredential, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+credentialColumns+` FROM irp.team_credentials
		WHERE (team_id = $1 OR team_id IS NULL) AND is_active
		ORDER BY team_id NULLS LAST
		LIMIT 1`, teamID)
	return scanCredential(row)
}

func (q *Queries) GetCredential(ctx context.Context, id int64) (core.TeamCredential, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+credentialColumns+` FROM irp.team_credentials WHERE id = $1`, id)
	return scanCredential(row)
}

func (q *Queries) ListCredentials(ctx context.Context) ([]core.TeamCredential, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+credentialColumns+` FROM irp.team_credentials
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creds := []core.TeamCredential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (q *Queries) DeactivateCredential(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE irp.team_credentials SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
