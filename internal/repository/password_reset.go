package repository

import (
	"context"
	"time"

	"ats/internal/db"
	"ats/internal/logger"
	"ats/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PasswordResetRepository struct {
	db *pgxpool.Pool
}

func NewPasswordResetRepository(db *pgxpool.Pool) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

type PasswordResetRepo interface {
	Create(ctx context.Context, userID int64, tokenHash string, createdAt, expiresAt time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	// Consume атомарно гасит токен: used_at ставится только если токен не использован и не истёк.
	// Если условие не выполнено — ErrNotFound.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
	// Release снимает отметку, поставленную Consume с тем же usedAt.
	Release(ctx context.Context, id int64, usedAt time.Time) error
	InvalidateOthers(ctx context.Context, userID, keepID int64, now time.Time) (int64, error)
	IssuedSince(ctx context.Context, userID int64, since time.Time) (count int, last *time.Time, err error)
}

const tokenColumns = `id, user_id, token_hash, expires_at, used_at, created_at`

func (r *PasswordResetRepository) Create(ctx context.Context, userID int64, tokenHash string, createdAt, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, created_at) VALUES ($1,$2,$3,$4)`,
		userID, tokenHash, expiresAt, createdAt,
	)
	if err != nil {
		logger.Log.Error("Create reset token failed", zap.Error(err), zap.Int64("user_id", userID))
	}
	return err
}

func (r *PasswordResetRepository) GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	var t models.PasswordResetToken
	err := pgxscan.Get(ctx, r.db, &t,
		`SELECT `+tokenColumns+` FROM password_reset_tokens WHERE token_hash = $1`, tokenHash)
	if pgxscan.NotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PasswordResetRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	var t models.PasswordResetToken
	err := pgxscan.Get(ctx, r.db, &t, `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE token_hash = $1
		  AND used_at IS NULL
		  AND expires_at > $2
		RETURNING `+tokenColumns, tokenHash, now)
	if pgxscan.NotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PasswordResetRepository) Release(ctx context.Context, id int64, usedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = NULL WHERE id = $1 AND used_at = $2`, id, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PasswordResetRepository) InvalidateOthers(ctx context.Context, userID, keepID int64, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE password_reset_tokens
		SET used_at = $3
		WHERE user_id = $1 AND id <> $2 AND used_at IS NULL`, userID, keepID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PasswordResetRepository) IssuedSince(ctx context.Context, userID int64, since time.Time) (int, *time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	var (
		count int
		last  *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT count(*), max(created_at)
		FROM password_reset_tokens
		WHERE user_id = $1 AND created_at > $2`, userID, since).Scan(&count, &last)
	return count, last, err
}
