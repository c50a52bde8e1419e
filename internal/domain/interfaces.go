package domain

import (
	"context"
	"time"
)

// StopWordSet — множество стоп-слов для частотных таблиц.
type StopWordSet map[string]struct{}

// Contains сообщает, входит ли токен в множество.
func (s StopWordSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// StopWordsProvider загружает список стоп-слов из внешнего ресурса.
type StopWordsProvider interface {
	Load() (StopWordSet, error)
}

// ReportService строит отчёт по загруженному транскрипту.
type ReportService interface {
	BuildReport(ctx context.Context, transcript string, req AnalysisRequest) (Report, error)
	ListParticipants(transcript string) []string
}

// UserRepo управляет учётными записями.
type UserRepo interface {
	CreateUser(username, email, passwordHash string) (User, error)
	GetByUsername(username string) (User, error)
	UpdateLastLogin(userID int64, at time.Time) error
	RecordActivity(ctx context.Context, event ActivityEvent) error
	ListActivity(userID int64, limit int) ([]ActivityEvent, error)
}

// ReportRepo сохраняет и возвращает историю отчётов.
type ReportRepo interface {
	SaveReport(record ReportRecord) (ReportRecord, error)
	ListHistory(userID int64, fromDate time.Time) ([]ReportRecord, error)
}

// ReportQueue — очередь фоновых задач построения отчётов.
type ReportQueue interface {
	Enqueue(ctx context.Context, job ReportJob) error
	Pop(ctx context.Context) (ReportJob, error)
}

// Mailer доставляет готовый отчёт на почту.
type Mailer interface {
	SendReport(ctx context.Context, recipient, subject string, attachment []byte, filename string) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
