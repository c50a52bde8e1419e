package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"wa-chat-insights/internal/adapters/mailer"
	"wa-chat-insights/internal/adapters/repo"
	"wa-chat-insights/internal/adapters/stopwords"
	"wa-chat-insights/internal/domain"
	"wa-chat-insights/internal/infra/cache"
	"wa-chat-insights/internal/infra/config"
	"wa-chat-insights/internal/infra/db"
	applog "wa-chat-insights/internal/infra/log"
	"wa-chat-insights/internal/infra/metrics"
	"wa-chat-insights/internal/infra/queue"
	"wa-chat-insights/internal/usecase/analyze"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	appCache := cache.NewRedis(redisClient)
	repoAdapter := repo.NewPostgres(pool)
	reportService := analyze.NewService(
		stopwords.NewFile(cfg.StopWordsPath),
		appCache,
		logger.With().Str("component", "analyze").Logger(),
		cfg.Analysis.TopWordsLimit,
		cfg.Analysis.MaxGapMinutes,
		cfg.Analysis.IncludeNonText,
	)
	reportMailer := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Sender:   cfg.SMTP.Sender,
		Password: cfg.SMTP.Password,
	})

	var reportQueue domain.ReportQueue
	if cfg.Queues.AMQPURL != "" {
		reportQueue, err = queue.NewRabbitReportQueue(cfg.Queues.AMQPURL, cfg.Queues.ManagementURL, cfg.Queues.Report)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: очередь RabbitMQ недоступна")
		}
	} else {
		reportQueue = queue.NewRedisReportQueue(redisClient, cfg.Queues.Report)
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	logger.Info().Msg("worker: старт")
	for {
		job, err := reportQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error().Err(err).Msg("worker: не удалось получить задачу")
			time.Sleep(time.Second)
			continue
		}
		handleJob(ctx, logger, appCache, job, reportService, repoAdapter, reportMailer)
	}
	logger.Info().Msg("worker: остановка")
}

const jobDedupTTL = 24 * time.Hour

// handleJob выполняет задачу не более одного раза: повторная доставка из
// очереди гасится TTL-ключом в кэше.
func handleJob(ctx context.Context, logger zerolog.Logger, dedup domain.Cache, job domain.ReportJob, reportService *analyze.Service, reports domain.ReportRepo, reportMailer domain.Mailer) {
	err := dedup.Once("report_job:"+job.JobID, jobDedupTTL, func() error {
		processJob(ctx, logger, job, reportService, reports, reportMailer)
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Str("job_id", job.JobID).Msg("worker: не удалось проверить повторную доставку")
	}
}

func processJob(ctx context.Context, logger zerolog.Logger, job domain.ReportJob, reportService *analyze.Service, reports domain.ReportRepo, reportMailer domain.Mailer) {
	report, err := reportService.BuildReport(ctx, job.Transcript, domain.AnalysisRequest{
		DayFirst:     job.DayFirst,
		SelectedUser: job.SelectedUser,
	})
	if err != nil {
		logger.Error().Err(err).Str("job_id", job.JobID).Msg("worker: построение отчёта не удалось")
		return
	}

	snapshot, err := json.Marshal(report)
	if err != nil {
		logger.Error().Err(err).Str("job_id", job.JobID).Msg("worker: сериализация отчёта не удалась")
		return
	}

	if _, err := reports.SaveReport(domain.ReportRecord{
		ReportID:       report.ID,
		UserID:         job.UserID,
		SelectedUser:   report.SelectedUser,
		TranscriptHash: analyze.TranscriptHash(job.Transcript),
		Snapshot:       snapshot,
	}); err != nil {
		logger.Warn().Err(err).Str("job_id", job.JobID).Msg("worker: не удалось сохранить отчёт")
	}

	if job.NotifyEmail == "" {
		return
	}
	filename := fmt.Sprintf("chat_report_%s_%s.json", report.SelectedUser, report.GeneratedAt.Format("20060102_150405"))
	subject := fmt.Sprintf("Отчёт по анализу переписки: %s", report.SelectedUser)
	if err := reportMailer.SendReport(ctx, job.NotifyEmail, subject, snapshot, filename); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			logger.Warn().Str("job_id", job.JobID).Msg("worker: почта не сконфигурирована, письмо пропущено")
			return
		}
		logger.Error().Err(err).Str("job_id", job.JobID).Msg("worker: отправка письма не удалась")
	}
}
