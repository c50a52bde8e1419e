package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wa-chat-insights/internal/domain"
	"wa-chat-insights/internal/usecase/analyze"
)

type stubStopWords struct{}

func (stubStopWords) Load() (domain.StopWordSet, error) { return domain.StopWordSet{}, nil }

type memDedup struct {
	keys map[string]struct{}
}

func newMemDedup() *memDedup { return &memDedup{keys: make(map[string]struct{})} }

func (c *memDedup) Once(key string, ttl time.Duration, fn func() error) error {
	if _, ok := c.keys[key]; ok {
		return nil
	}
	c.keys[key] = struct{}{}
	return fn()
}

func (c *memDedup) Set(key string, value []byte, ttl time.Duration) error { return nil }

func (c *memDedup) Get(key string) ([]byte, error) { return nil, nil }

type memReports struct {
	saved []domain.ReportRecord
}

func (r *memReports) SaveReport(record domain.ReportRecord) (domain.ReportRecord, error) {
	r.saved = append(r.saved, record)
	return record, nil
}

func (r *memReports) ListHistory(userID int64, fromDate time.Time) ([]domain.ReportRecord, error) {
	return r.saved, nil
}

type memMailer struct {
	sent int
}

func (m *memMailer) SendReport(ctx context.Context, recipient, subject string, attachment []byte, filename string) error {
	m.sent++
	return nil
}

func TestHandleJobDedupesRedelivery(t *testing.T) {
	reportService := analyze.NewService(stubStopWords{}, nil, zerolog.Nop(), 20, analyze.DefaultMaxGapMinutes, false)
	reports := &memReports{}
	mail := &memMailer{}
	dedup := newMemDedup()

	job := domain.ReportJob{
		JobID:       "job-1",
		UserID:      7,
		Transcript:  "1/1/23, 10:00 AM - Alice: hello 1/1/23, 10:05 AM - Bob: hi",
		DayFirst:    true,
		NotifyEmail: "user@example.com",
	}

	handleJob(context.Background(), zerolog.Nop(), dedup, job, reportService, reports, mail)
	handleJob(context.Background(), zerolog.Nop(), dedup, job, reportService, reports, mail)

	if len(reports.saved) != 1 {
		t.Fatalf("повторная доставка не должна сохранять отчёт дважды: %d", len(reports.saved))
	}
	if reports.saved[0].UserID != 7 {
		t.Fatalf("неожиданная запись истории: %+v", reports.saved[0])
	}
	if mail.sent != 1 {
		t.Fatalf("письмо должно уходить ровно один раз, получили %d", mail.sent)
	}
}

func TestHandleJobDistinctJobs(t *testing.T) {
	reportService := analyze.NewService(stubStopWords{}, nil, zerolog.Nop(), 20, analyze.DefaultMaxGapMinutes, false)
	reports := &memReports{}
	mail := &memMailer{}
	dedup := newMemDedup()

	job := domain.ReportJob{
		JobID:      "job-1",
		Transcript: "1/1/23, 10:00 AM - Alice: hello",
		DayFirst:   true,
	}
	handleJob(context.Background(), zerolog.Nop(), dedup, job, reportService, reports, mail)
	job.JobID = "job-2"
	handleJob(context.Background(), zerolog.Nop(), dedup, job, reportService, reports, mail)

	if len(reports.saved) != 2 {
		t.Fatalf("разные задачи должны обрабатываться независимо: %d", len(reports.saved))
	}
	if mail.sent != 0 {
		t.Fatalf("без notify_email письмо не отправляется, получили %d", mail.sent)
	}
}
