package accounts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wa-chat-insights/internal/domain"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	// ErrEmptyField возвращается при пустом имени или пароле.
	ErrEmptyField = errors.New("имя пользователя и пароль обязательны")
	// ErrSessionNotFound возвращается для неизвестного или истёкшего токена.
	ErrSessionNotFound = errors.New("сессия не найдена или истекла")
)

// Service управляет учётными записями и сессиями. Сессия — явный объект,
// передаваемый в обработчики; глобального состояния внутри конвейера нет.
type Service struct {
	repo       domain.UserRepo
	sessions   domain.Cache
	sessionTTL time.Duration
	log        zerolog.Logger
}

// NewService создаёт сервис учётных записей.
func NewService(repo domain.UserRepo, sessions domain.Cache, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, sessions: sessions, sessionTTL: sessionTTL, log: logger}
}

// HashPassword возвращает sha256-хэш пароля в hex.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register создаёт новую учётную запись.
func (s *Service) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrEmptyField
	}
	user, err := s.repo.CreateUser(username, email, HashPassword(password))
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.RecordActivity(ctx, domain.ActivityEvent{UserID: user.ID, Action: "registered"}); err != nil {
		s.log.Warn().Err(err).Msg("accounts: не удалось записать регистрацию в журнал")
	}
	return user, nil
}

// Login проверяет пароль и открывает сессию.
func (s *Service) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Session{}, ErrEmptyField
	}

	user, err := s.repo.GetByUsername(username)
	if err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}
	if user.PasswordHash != HashPassword(password) {
		return domain.Session{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(user.ID, now); err != nil {
		s.log.Warn().Err(err).Msg("accounts: не удалось обновить время входа")
	}

	session := domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("сериализация сессии: %w", err)
	}
	if err := s.sessions.Set(sessionKey(session.Token), payload, s.sessionTTL); err != nil {
		return domain.Session{}, fmt.Errorf("сохранение сессии: %w", err)
	}

	if err := s.repo.RecordActivity(ctx, domain.ActivityEvent{UserID: user.ID, Action: "logged in"}); err != nil {
		s.log.Warn().Err(err).Msg("accounts: не удалось записать вход в журнал")
	}
	return session, nil
}

// SessionFromToken возвращает сессию по токену.
func (s *Service) SessionFromToken(token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, ErrSessionNotFound
	}
	payload, err := s.sessions.Get(sessionKey(token))
	if err != nil || len(payload) == 0 {
		return domain.Session{}, ErrSessionNotFound
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return domain.Session{}, ErrSessionNotFound
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return domain.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// RecordActivity пишет действие пользователя в журнал.
func (s *Service) RecordActivity(ctx context.Context, userID int64, action string) {
	if err := s.repo.RecordActivity(ctx, domain.ActivityEvent{UserID: userID, Action: action}); err != nil {
		s.log.Warn().Err(err).Msg("accounts: не удалось записать действие в журнал")
	}
}

func sessionKey(token string) string {
	return "session:" + token
}
