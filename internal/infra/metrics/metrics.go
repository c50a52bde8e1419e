package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ReportBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_build_seconds",
		Help:    "Время построения отчёта по транскрипту",
		Buckets: prometheus.DefBuckets,
	})
	ReportRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_requests_total",
		Help: "Общее количество запросов на построение отчёта",
	})
	ReportRequestsByFilter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_requests_by_filter_total",
		Help: "Запросы на отчёт по выбранному участнику",
	}, []string{"selected_user"})
	ParseDegradationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transcript_parse_degradations_total",
		Help: "Транскрипты без единой распознанной метки времени",
	})
	MailSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_send_errors_total",
		Help: "Ошибки отправки отчёта по почте",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ReportBuildSeconds,
		ReportRequestsTotal,
		ReportRequestsByFilter,
		ParseDegradationsTotal,
		MailSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveReportBuild записывает длительность построения отчёта.
func ObserveReportBuild(d time.Duration) {
	ReportBuildSeconds.Observe(d.Seconds())
}

// IncReportRequests увеличивает счётчики запросов на отчёт.
func IncReportRequests(selectedUser string) {
	if selectedUser == "" {
		selectedUser = "Everyone"
	}
	ReportRequestsTotal.Inc()
	ReportRequestsByFilter.WithLabelValues(selectedUser).Inc()
}

// IncParseDegradations отмечает транскрипт, в котором парсер ничего не нашёл.
func IncParseDegradations() {
	ParseDegradationsTotal.Inc()
}

// IncMailSendError отмечает неудачную отправку письма.
func IncMailSendError() {
	MailSendErrors.Inc()
}
