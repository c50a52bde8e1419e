package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"wa-chat-insights/internal/adapters/repo"
	"wa-chat-insights/internal/adapters/stopwords"
	"wa-chat-insights/internal/domain"
	"wa-chat-insights/internal/infra/cache"
	"wa-chat-insights/internal/infra/config"
	"wa-chat-insights/internal/infra/db"
	httpinfra "wa-chat-insights/internal/infra/http"
	applog "wa-chat-insights/internal/infra/log"
	"wa-chat-insights/internal/infra/metrics"
	"wa-chat-insights/internal/infra/queue"
	"wa-chat-insights/internal/usecase/accounts"
	"wa-chat-insights/internal/usecase/analyze"
)

const maxUploadBytes = 16 << 20

type sessionCtxKey struct{}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	appCache := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)
	stopProvider := stopwords.NewFile(cfg.StopWordsPath)

	accountsService := accounts.NewService(
		repoAdapter,
		appCache,
		time.Duration(cfg.Analysis.SessionTTLHours)*time.Hour,
		logger.With().Str("component", "accounts").Logger(),
	)
	reportService := analyze.NewService(
		stopProvider,
		appCache,
		logger.With().Str("component", "analyze").Logger(),
		cfg.Analysis.TopWordsLimit,
		cfg.Analysis.MaxGapMinutes,
		cfg.Analysis.IncludeNonText,
	)

	var reportQueue domain.ReportQueue
	if cfg.Queues.AMQPURL != "" {
		reportQueue, err = queue.NewRabbitReportQueue(cfg.Queues.AMQPURL, cfg.Queues.ManagementURL, cfg.Queues.Report)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: очередь RabbitMQ недоступна")
		}
	} else {
		reportQueue = queue.NewRedisReportQueue(redisClient, cfg.Queues.Report)
	}

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	r := server.Router

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/auth/register", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		var body registerRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user, err := accountsService.Register(req.Context(), body.Username, body.Email, body.Password)
		if err != nil {
			switch {
			case errors.Is(err, accounts.ErrEmptyField):
				writeError(w, http.StatusBadRequest, "username and password are required")
			case errors.Is(err, repo.ErrUserExists):
				writeError(w, http.StatusConflict, "username already taken")
			default:
				logger.Error().Err(err).Msg("api: регистрация не удалась")
				writeError(w, http.StatusInternalServerError, "failed to register")
			}
			return
		}
		writeJSON(w, map[string]any{"id": user.ID, "username": user.Username})
	})

	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		var body loginRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		session, err := accountsService.Login(req.Context(), body.Username, body.Password)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidCredentials) || errors.Is(err, accounts.ErrEmptyField) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error().Err(err).Msg("api: вход не удался")
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}
		writeJSON(w, map[string]any{"token": session.Token, "expires_at": session.ExpiresAt})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(sessionMiddleware(accountsService))

		protected.Post("/api/v1/reports/participants", func(w http.ResponseWriter, req *http.Request) {
			transcript, _, _, _, err := readAnalysisForm(req, false)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, map[string]any{"participants": reportService.ListParticipants(transcript)})
		})

		protected.Post("/api/v1/reports", func(w http.ResponseWriter, req *http.Request) {
			session := sessionFrom(req.Context())
			transcript, dayFirst, selectedUser, notifyEmail, err := readAnalysisForm(req, true)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			if req.URL.Query().Get("async") == "true" {
				job := domain.ReportJob{
					JobID:        uuid.NewString(),
					UserID:       session.UserID,
					Transcript:   transcript,
					DayFirst:     dayFirst,
					SelectedUser: selectedUser,
					NotifyEmail:  notifyEmail,
				}
				if err := reportQueue.Enqueue(req.Context(), job); err != nil {
					logger.Error().Err(err).Msg("api: не удалось поставить задачу в очередь")
					writeError(w, http.StatusInternalServerError, "failed to enqueue job")
					return
				}
				writeJSONStatus(w, http.StatusAccepted, map[string]string{"job_id": job.JobID})
				return
			}

			report, err := reportService.BuildReport(req.Context(), transcript, domain.AnalysisRequest{
				DayFirst:     dayFirst,
				SelectedUser: selectedUser,
			})
			if err != nil {
				logger.Error().Err(err).Msg("api: построение отчёта не удалось")
				writeError(w, http.StatusUnprocessableEntity, "failed to build report")
				return
			}

			snapshot, err := json.Marshal(report)
			if err == nil {
				if _, err := repoAdapter.SaveReport(domain.ReportRecord{
					ReportID:       report.ID,
					UserID:         session.UserID,
					SelectedUser:   report.SelectedUser,
					TranscriptHash: analyze.TranscriptHash(transcript),
					Snapshot:       snapshot,
				}); err != nil {
					logger.Warn().Err(err).Msg("api: не удалось сохранить отчёт в историю")
				}
			}
			accountsService.RecordActivity(req.Context(), session.UserID, fmt.Sprintf("built report for %s", report.SelectedUser))

			writeJSON(w, report)
		})

		protected.Get("/api/v1/reports/history", func(w http.ResponseWriter, req *http.Request) {
			session := sessionFrom(req.Context())
			fromDate := time.Now().UTC().AddDate(0, 0, -30)
			records, err := repoAdapter.ListHistory(session.UserID, fromDate)
			if err != nil {
				logger.Error().Err(err).Msg("api: история недоступна")
				writeError(w, http.StatusInternalServerError, "failed to list history")
				return
			}
			writeJSON(w, map[string]any{"history": records})
		})

		protected.Get("/api/v1/activity", func(w http.ResponseWriter, req *http.Request) {
			session := sessionFrom(req.Context())
			events, err := repoAdapter.ListActivity(session.UserID, 50)
			if err != nil {
				logger.Error().Err(err).Msg("api: журнал недоступен")
				writeError(w, http.StatusInternalServerError, "failed to list activity")
				return
			}
			writeJSON(w, map[string]any{"activity": events})
		})
	})

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// sessionMiddleware кладёт явную сессию в контекст запроса.
func sessionMiddleware(accountsService *accounts.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			session, err := accountsService.SessionFromToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "missing or expired session")
				return
			}
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), sessionCtxKey{}, session)))
		})
	}
}

func sessionFrom(ctx context.Context) domain.Session {
	session, _ := ctx.Value(sessionCtxKey{}).(domain.Session)
	return session
}

// readAnalysisForm читает multipart-форму: файл transcript и настройки
// анализа. Порядок дат обязателен и принимает только значения исходного
// селектора: "dd-mm-yy" либо "mm-dd-yy".
func readAnalysisForm(req *http.Request, requireOrder bool) (transcript string, dayFirst bool, selectedUser, notifyEmail string, err error) {
	if err = req.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", false, "", "", errors.New("invalid multipart form")
	}
	file, _, err := req.FormFile("transcript")
	if err != nil {
		return "", false, "", "", errors.New("transcript file is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", false, "", "", errors.New("failed to read transcript")
	}

	order := req.FormValue("date_order")
	switch order {
	case "dd-mm-yy":
		dayFirst = true
	case "mm-dd-yy":
		dayFirst = false
	default:
		if requireOrder {
			return "", false, "", "", errors.New("date_order must be dd-mm-yy or mm-dd-yy")
		}
	}

	selectedUser = req.FormValue("selected_user")
	if selectedUser == "" {
		selectedUser = domain.EveryoneFilter
	}
	return string(data), dayFirst, selectedUser, req.FormValue("notify_email"), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus выставляет заголовки до записи кода статуса: после
// WriteHeader менять их уже поздно.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
