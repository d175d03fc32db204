package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/dmitrijs2005/securingai/internal/dbx"
	"github.com/dmitrijs2005/securingai/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, alternative_id, name, password, deleted, created_at`

// PostgresRepository stores users in the "users" table created by the
// embedded migrations.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create locks the table for the duration of the insert so that the
// max(id)+1 allocation cannot race; the partial unique index on active
// names turns a duplicate into common.ErrorNameTaken.
func (r *PostgresRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	rec := u.Clone()
	rec.Deleted = false

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}

		query :=
			`INSERT INTO users (id, alternative_id, name, password)
			 SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3 FROM users
			 RETURNING id, created_at`

		return tx.QueryRowContext(ctx, query, rec.AlternativeID, rec.Name, rec.Password).
			Scan(&rec.ID, &rec.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorNameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) FindActiveByName(ctx context.Context, name string) (*models.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1 AND NOT deleted`, name)
}

func (r *PostgresRepository) FindByAlternativeID(ctx context.Context, alternativeID string) (*models.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE alternative_id = $1 ORDER BY id LIMIT 1`, alternativeID)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, expectedHash, newHash, newAlternativeID string) error {
	query :=
		`UPDATE users
		 SET password = $3, alternative_id = COALESCE(NULLIF($4, ''), alternative_id)
		 WHERE id = $1 AND password = $2 AND NOT deleted`

	res, err := r.db.ExecContext(ctx, query, id, expectedHash, newHash, newAlternativeID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

func (r *PostgresRepository) RotateAlternativeID(ctx context.Context, id int64, newAlternativeID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET alternative_id = $2 WHERE id = $1`, id, newAlternativeID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, id int64, expectedHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted = TRUE WHERE id = $1 AND password = $2 AND NOT deleted`,
		id, expectedHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.AlternativeID, &u.Name, &u.Password, &u.Deleted, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// checkAffected tells a missing row from one that no longer matches the
// expected state.
func (r *PostgresRepository) checkAffected(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return common.ErrorConflict
}
