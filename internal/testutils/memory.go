// Package testutils: хранилища в памяти с теми же контрактами, что и Postgres-репозитории.
package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"ats/internal/models"
	"ats/internal/repository"
	"ats/internal/utils/helpers"

	"golang.org/x/crypto/bcrypt"
)

// TokenStore реализует repository.PasswordResetRepo под одним мьютексом,
// поэтому Consume атомарен так же, как условный UPDATE в базе.
type TokenStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.PasswordResetToken // по token_hash

	// FailCreate / FailConsume / FailRelease — принудительные ошибки хранилища.
	FailCreate  error
	FailConsume error
	FailRelease error
}

var _ repository.PasswordResetRepo = (*TokenStore)(nil)

func NewTokenStore() *TokenStore {
	return &TokenStore{rows: make(map[string]*models.PasswordResetToken)}
}

func (s *TokenStore) Create(_ context.Context, userID int64, tokenHash string, createdAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	if _, ok := s.rows[tokenHash]; ok {
		return errors.New("duplicate token_hash")
	}
	s.nextID++
	s.rows[tokenHash] = &models.PasswordResetToken{
		ID:        s.nextID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}
	return nil
}

func (s *TokenStore) GetByHash(_ context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TokenStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailConsume != nil {
		return nil, s.FailConsume
	}
	t, ok := s.rows[tokenHash]
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	usedAt := now
	t.UsedAt = &usedAt
	cp := *t
	return &cp, nil
}

func (s *TokenStore) Release(_ context.Context, id int64, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRelease != nil {
		return s.FailRelease
	}
	for _, t := range s.rows {
		if t.ID == id && t.UsedAt != nil && t.UsedAt.Equal(usedAt) {
			t.UsedAt = nil
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *TokenStore) InvalidateOthers(_ context.Context, userID, keepID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.rows {
		if t.UserID == userID && t.ID != keepID && t.UsedAt == nil {
			usedAt := now
			t.UsedAt = &usedAt
			n++
		}
	}
	return n, nil
}

func (s *TokenStore) IssuedSince(_ context.Context, userID int64, since time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		count int
		last  *time.Time
	)
	for _, t := range s.rows {
		if t.UserID != userID || !t.CreatedAt.After(since) {
			continue
		}
		count++
		if last == nil || t.CreatedAt.After(*last) {
			c := t.CreatedAt
			last = &c
		}
	}
	return count, last, nil
}

// SetExpiresAt — подкрутить срок действия для граничных тестов.
func (s *TokenStore) SetExpiresAt(tokenHash string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.rows[tokenHash]; ok {
		t.ExpiresAt = at
	}
}

// Tokens — копия всех строк.
func (s *TokenStore) Tokens() []models.PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PasswordResetToken, 0, len(s.rows))
	for _, t := range s.rows {
		out = append(out, *t)
	}
	return out
}

// Accounts — учётные записи с bcrypt-хешами, аналог UserRepository.
type Accounts struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*models.User

	FailReplace error
}

func NewAccounts() *Accounts {
	return &Accounts{byEmail: make(map[string]*models.User)}
}

func (a *Accounts) Add(email, password string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	u := &models.User{ID: a.nextID, Email: email, PasswordHash: string(hash)}
	a.byEmail[email] = u
	return u
}

func (a *Accounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (a *Accounts) ReplaceCredential(_ context.Context, userID int64, newPassword string) error {
	if a.FailReplace != nil {
		return a.FailReplace
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.byEmail {
		if u.ID == userID {
			u.PasswordHash = string(hash)
			return nil
		}
	}
	return repository.ErrNotFound
}

// CheckCredential — проверка пароля в стиле логина.
func (a *Accounts) CheckCredential(_ context.Context, email, password string) (bool, error) {
	a.mu.Lock()
	u, ok := a.byEmail[email]
	a.mu.Unlock()
	if !ok {
		return false, repository.ErrNotFound
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil, nil
}

type SentEmail struct {
	To      string
	Content helpers.EmailContent
}

// Mailer запоминает письма; Err — ошибка транспорта, которую надо вернуть.
type Mailer struct {
	mu   sync.Mutex
	Sent []SentEmail
	Err  error
}

func (m *Mailer) Send(_ context.Context, to string, content helpers.EmailContent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Sent = append(m.Sent, SentEmail{To: to, Content: content})
	return "<test@localhost>", nil
}

func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *Mailer) Last() (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentEmail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
