package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ats/internal/logger"
	"ats/internal/models"
	"ats/internal/repository"
	"ats/internal/utils/helpers"

	"go.uber.org/zap"
)

// AccountStore — внешнее хранилище учётных записей.
// ReplaceCredential — привилегированная операция замены пароля.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ReplaceCredential(ctx context.Context, userID int64, newPassword string) error
}

type PasswordOptions struct {
	TokenTTL   time.Duration
	Cooldown   time.Duration // минимальный интервал между выдачами одному аккаунту; 0 — без ограничения
	DailyLimit int           // максимум выдач за сутки; 0 — без ограничения
	Now        func() time.Time
}

type PasswordService struct {
	repo     repository.PasswordResetRepo
	accounts AccountStore
	mailer   Mailer
	metrics  *Metrics
	opts     PasswordOptions
}

func NewPasswordService(repo repository.PasswordResetRepo, accounts AccountStore, mailer Mailer, metrics *Metrics, opts PasswordOptions) *PasswordService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PasswordService{
		repo:     repo,
		accounts: accounts,
		mailer:   mailer,
		metrics:  metrics,
		opts:     opts,
	}
}

// now — в UTC и с точностью до микросекунд, как хранит timestamptz.
func (s *PasswordService) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Microsecond)
}

// RequestReset выдаёт одноразовый токен и отправляет письмо со ссылкой.
// Для несуществующего email, троттлинга и сбоя отправки возвращает nil — снаружи они неотличимы от успеха.
// Ошибка только на пустой email (ErrValidation) и сбой хранилища (ErrPersistence).
func (s *PasswordService) RequestReset(ctx context.Context, email, appOrigin string) error {
	log := logger.WithCtx(ctx)

	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("Запрос сброса для неизвестного email")
		s.metrics.request(OutcomeUnknownAccount)
		return nil
	}
	if err != nil {
		s.metrics.request(OutcomeError)
		return fmt.Errorf("%w: find account: %v", ErrPersistence, err)
	}

	now := s.now()

	throttled, err := s.throttled(ctx, user.ID, now)
	if err != nil {
		s.metrics.request(OutcomeError)
		return fmt.Errorf("%w: issuance stats: %v", ErrPersistence, err)
	}
	if throttled {
		log.Warn("Запрос сброса пароля отклонён лимитом", zap.Int64("user_id", user.ID))
		s.metrics.request(OutcomeThrottled)
		return nil
	}

	token, tokenHash, err := generateToken()
	if err != nil {
		s.metrics.request(OutcomeError)
		return fmt.Errorf("%w: generate token: %v", ErrPersistence, err)
	}

	expires := now.Add(s.opts.TokenTTL)
	if err := s.repo.Create(ctx, user.ID, tokenHash, now, expires); err != nil {
		s.metrics.request(OutcomeError)
		return fmt.Errorf("%w: store token: %v", ErrPersistence, err)
	}

	content, err := helpers.Compose(helpers.TemplatePasswordReset, helpers.EmailParams{
		Link: BuildResetLink(appOrigin, token),
		TTL:  s.opts.TokenTTL,
	})
	if err != nil {
		log.Error("Не удалось собрать письмо сброса пароля", zap.Error(err))
		s.metrics.request(OutcomeEmailFailed)
		return nil
	}

	msgID, err := s.mailer.Send(ctx, user.Email, content)
	if err != nil {
		// Токен уже выдан; пользователь может запросить ссылку повторно.
		log.Error("Ошибка отправки письма для сброса пароля",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		s.metrics.request(OutcomeEmailFailed)
		return nil
	}

	log.Info("Письмо со ссылкой на сброс пароля отправлено",
		zap.Int64("user_id", user.ID),
		zap.String("message_id", msgID),
		zap.Time("expires_at", expires),
	)
	s.metrics.request(OutcomeIssued)
	return nil
}

func (s *PasswordService) throttled(ctx context.Context, userID int64, now time.Time) (bool, error) {
	if s.opts.DailyLimit <= 0 && s.opts.Cooldown <= 0 {
		return false, nil
	}
	count, last, err := s.repo.IssuedSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return false, err
	}
	if s.opts.DailyLimit > 0 && count >= s.opts.DailyLimit {
		return true, nil
	}
	if s.opts.Cooldown > 0 && last != nil && now.Sub(*last) < s.opts.Cooldown {
		return true, nil
	}
	return false, nil
}

// ResetPassword гасит токен и устанавливает новый пароль.
//
// Токен гасится атомарным условным UPDATE до замены пароля, поэтому два параллельных
// запроса с одним токеном не могут оба дойти до ReplaceCredential. Если замена пароля
// не удалась, отметка снимается и ссылкой можно воспользоваться снова.
func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string) error {
	log := logger.WithCtx(ctx)

	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}

	tokenHash := hashToken(token)
	now := s.now()

	rec, err := s.repo.Consume(ctx, tokenHash, now)
	if errors.Is(err, repository.ErrNotFound) {
		err = s.rejection(ctx, tokenHash, now)
		log.Warn("Отказ в сбросе пароля по токену", zap.Error(err))
		return err
	}
	if err != nil {
		s.metrics.completion(OutcomeError)
		return fmt.Errorf("%w: consume token: %v", ErrPersistence, err)
	}

	// Компенсация и отзыв остальных токенов не должны зависеть от отмены клиентского запроса.
	bg := context.WithoutCancel(ctx)

	if err := s.accounts.ReplaceCredential(ctx, rec.UserID, newPassword); err != nil {
		log.Error("Ошибка обновления пароля пользователя",
			zap.Int64("user_id", rec.UserID),
			zap.Error(err),
		)
		usedAt := now
		if rec.UsedAt != nil {
			usedAt = *rec.UsedAt
		}
		if rerr := s.repo.Release(bg, rec.ID, usedAt); rerr != nil {
			log.Error("Токен сброса погашен, но пароль не изменён: требуется ручная проверка",
				zap.Int64("token_id", rec.ID),
				zap.Int64("user_id", rec.UserID),
				zap.Error(rerr),
			)
		}
		s.metrics.completion(OutcomeCredentialKO)
		return fmt.Errorf("%w: %v", ErrCredentialUpdate, err)
	}

	if n, err := s.repo.InvalidateOthers(bg, rec.UserID, rec.ID, now); err != nil {
		log.Warn("Не удалось отозвать остальные токены сброса",
			zap.Int64("user_id", rec.UserID),
			zap.Error(err),
		)
	} else if n > 0 {
		log.Info("Отозваны остальные токены сброса", zap.Int64("user_id", rec.UserID), zap.Int64("count", n))
	}

	log.Info("Пароль успешно сброшен", zap.Int64("user_id", rec.UserID))
	s.metrics.completion(OutcomeSuccess)
	return nil
}

// rejection объясняет, почему Consume не сработал. Порядок проверок: нет токена, использован, истёк.
func (s *PasswordService) rejection(ctx context.Context, tokenHash string, now time.Time) error {
	t, err := s.repo.GetByHash(ctx, tokenHash)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.completion(OutcomeNotFound)
		return ErrTokenNotFound
	case err != nil:
		s.metrics.completion(OutcomeError)
		return fmt.Errorf("%w: load token: %v", ErrPersistence, err)
	case t.Used():
		s.metrics.completion(OutcomeAlreadyUsed)
		return ErrTokenAlreadyUsed
	case t.Expired(now):
		s.metrics.completion(OutcomeExpired)
		return ErrTokenExpired
	default:
		// Токен успели вернуть компенсацией параллельного запроса: в момент Consume он был занят.
		s.metrics.completion(OutcomeAlreadyUsed)
		return ErrTokenAlreadyUsed
	}
}

// BuildResetLink: <origin>/reset-password?token=<token>
func BuildResetLink(origin, token string) string {
	return strings.TrimRight(origin, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// generateToken — 32 байта из crypto/rand; в базу уходит только sha256 от токена.
func generateToken() (token, tokenHash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
