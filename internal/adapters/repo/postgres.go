package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wa-chat-insights/internal/domain"
	"wa-chat-insights/internal/infra/metrics"
)

// ErrUserExists возвращается при попытке создать дубликат учётной записи.
var ErrUserExists = errors.New("пользователь с таким именем уже существует")

// ErrUserNotFound возвращается, когда учётная запись не найдена.
var ErrUserNotFound = errors.New("пользователь не найден")

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepo = (*Postgres)(nil)
var _ domain.ReportRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateUser реализует domain.UserRepo.
func (p *Postgres) CreateUser(username, email, passwordHash string) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, created_at)
VALUES ($1, $2, $3, now())
RETURNING id, username, email, password_hash, created_at
`, username, email, passwordHash)

	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("создание пользователя: %w", err)
	}
	return u, nil
}

// GetByUsername реализует domain.UserRepo.
func (p *Postgres) GetByUsername(username string) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at, last_login_at
FROM users
WHERE username = $1
`, strings.TrimSpace(username))

	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastLoginAt)
	metrics.ObserveNetworkRequest("postgres", "users_select", "users", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("поиск пользователя: %w", err)
	}
	return u, nil
}

// UpdateLastLogin реализует domain.UserRepo.
func (p *Postgres) UpdateLastLogin(userID int64, at time.Time) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	metrics.ObserveNetworkRequest("postgres", "users_update", "users", start, err)
	if err != nil {
		return fmt.Errorf("обновление времени входа: %w", err)
	}
	return nil
}

// RecordActivity реализует domain.UserRepo.
func (p *Postgres) RecordActivity(ctx context.Context, event domain.ActivityEvent) error {
	if event.Action == "" {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO user_activity (user_id, action, occurred_at)
VALUES ($1, $2, $3)
`, event.UserID, event.Action, event.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "activity_insert", "user_activity", start, err)
	return err
}

// ListActivity реализует domain.UserRepo.
func (p *Postgres) ListActivity(userID int64, limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, action, occurred_at
FROM user_activity
WHERE user_id = $1
ORDER BY occurred_at DESC
LIMIT $2
`, userID, limit)
	metrics.ObserveNetworkRequest("postgres", "activity_select", "user_activity", start, err)
	if err != nil {
		return nil, fmt.Errorf("журнал действий: %w", err)
	}
	defer rows.Close()

	var events []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		if err := rows.Scan(&e.UserID, &e.Action, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("чтение журнала: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveReport реализует domain.ReportRepo.
func (p *Postgres) SaveReport(record domain.ReportRecord) (domain.ReportRecord, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO reports (report_id, user_id, selected_user, transcript_hash, snapshot, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, record.ReportID, record.UserID, record.SelectedUser, record.TranscriptHash, record.Snapshot, record.CreatedAt)
	err := row.Scan(&record.ID)
	metrics.ObserveNetworkRequest("postgres", "reports_insert", "reports", start, err)
	if err != nil {
		return domain.ReportRecord{}, fmt.Errorf("сохранение отчёта: %w", err)
	}
	return record, nil
}

// ListHistory реализует domain.ReportRepo.
func (p *Postgres) ListHistory(userID int64, fromDate time.Time) ([]domain.ReportRecord, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, report_id, user_id, selected_user, transcript_hash, snapshot, created_at
FROM reports
WHERE user_id = $1 AND created_at >= $2
ORDER BY created_at DESC
`, userID, fromDate)
	metrics.ObserveNetworkRequest("postgres", "reports_select", "reports", start, err)
	if err != nil {
		return nil, fmt.Errorf("история отчётов: %w", err)
	}
	defer rows.Close()

	var records []domain.ReportRecord
	for rows.Next() {
		var r domain.ReportRecord
		if err := rows.Scan(&r.ID, &r.ReportID, &r.UserID, &r.SelectedUser, &r.TranscriptHash, &r.Snapshot, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение истории: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
