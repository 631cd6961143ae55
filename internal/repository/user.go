package repository

import (
	"context"

	"ats/internal/db"
	"ats/internal/logger"
	"ats/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository struct {
	db         *pgxpool.Pool
	bcryptCost int
}

func NewUserRepository(db *pgxpool.Pool, bcryptCost int) *UserRepository {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserRepository{db: db, bcryptCost: bcryptCost}
}

// FindByEmail ищет пользователя по точному (регистрозависимому) совпадению email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	var u models.User
	err := pgxscan.Get(ctx, r.db, &u,
		`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`, email)
	if pgxscan.NotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Log.Error("Ошибка поиска пользователя по email (repo)", zap.Error(err))
		return nil, err
	}
	return &u, nil
}

// ReplaceCredential — привилегированная замена пароля: хешируем и перезаписываем password_hash.
func (r *UserRepository) ReplaceCredential(ctx context.Context, userID int64, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), r.bcryptCost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, string(hash), userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckCredential сверяет пароль с сохранённым хешем (проверка в стиле логина).
func (r *UserRepository) CheckCredential(ctx context.Context, email, password string) (bool, error) {
	u, err := r.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil, nil
}

// Create нужен для сидов и интеграционных тестов.
func (r *UserRepository) Create(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.bcryptCost)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	var u models.User
	err = pgxscan.Get(ctx, r.db, &u, `
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, email, password_hash, created_at, updated_at`, email, string(hash))
	if err != nil {
		return nil, err
	}
	return &u, nil
}
