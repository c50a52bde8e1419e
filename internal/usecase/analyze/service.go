package analyze

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wa-chat-insights/internal/domain"
	"wa-chat-insights/internal/infra/metrics"
)

const reportCacheTTL = 30 * time.Minute

// Service реализует полный конвейер анализа: парсер → нормализатор →
// {статистика, отклики} → сборка снимка. Каждый прогон владеет своими
// данными, между прогонами ничего не разделяется.
type Service struct {
	stopWords      domain.StopWordsProvider
	cache          domain.Cache
	log            zerolog.Logger
	topWords       int
	maxGapMinutes  float64
	includeNonText bool
}

var _ domain.ReportService = (*Service)(nil)

// NewService создаёт сервис отчётов. cache может быть nil.
func NewService(stopWords domain.StopWordsProvider, cache domain.Cache, logger zerolog.Logger, topWords int, maxGapMinutes float64, includeNonText bool) *Service {
	return &Service{
		stopWords:      stopWords,
		cache:          cache,
		log:            logger,
		topWords:       topWords,
		maxGapMinutes:  maxGapMinutes,
		includeNonText: includeNonText,
	}
}

// BuildReport строит снимок отчёта по транскрипту. Деградация парсера не
// является ошибкой; ошибкой завершаются только неверная конфигурация
// dayFirst и недоступный список стоп-слов.
func (s *Service) BuildReport(ctx context.Context, transcript string, req domain.AnalysisRequest) (domain.Report, error) {
	start := time.Now()
	metrics.IncReportRequests(req.SelectedUser)

	cacheKey := reportCacheKey(transcript, req)
	if s.cache != nil {
		if data, err := s.cache.Get(cacheKey); err == nil && len(data) > 0 {
			var cached domain.Report
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	raw := Parse(transcript)
	if len(raw) == 0 && strings.TrimSpace(transcript) != "" {
		metrics.IncParseDegradations()
		s.log.Warn().Msg("analyze: в транскрипте не нашлось ни одной метки времени")
	}

	msgs, err := Normalize(raw, req.DayFirst)
	if err != nil {
		return domain.Report{}, fmt.Errorf("нормализация: %w", err)
	}

	participants := ListParticipants(transcript)

	working := msgs
	if req.SelectedUser != "" && req.SelectedUser != domain.EveryoneFilter {
		working = FilterSender(working, req.SelectedUser)
	}

	counts := CountCategories(working)
	textOnly := TextOnly(working)

	stop, err := s.stopWords.Load()
	if err != nil {
		return domain.Report{}, fmt.Errorf("загрузка стоп-слов: %w", err)
	}

	report := domain.Report{
		ID:           uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		SelectedUser: req.SelectedUser,
		DayFirst:     req.DayFirst,
		Participants: participants,
		Stats:        ComputeStats(textOnly, counts, stop, s.topWords),
	}

	// Анализ откликов имеет смысл только для всей переписки и как минимум
	// двух участников.
	if (req.SelectedUser == "" || req.SelectedUser == domain.EveryoneFilter) && distinctSenders(textOnly) > 1 {
		resp := InferResponses(working, ResponseOptions{
			IncludeNonText: s.includeNonText,
			MaxGapMinutes:  s.maxGapMinutes,
		})
		report.Responses = &resp
	}

	if s.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(cacheKey, data, reportCacheTTL); err != nil {
				s.log.Warn().Err(err).Msg("analyze: не удалось закэшировать отчёт")
			}
		}
	}

	metrics.ObserveReportBuild(time.Since(start))
	return report, nil
}

// ListParticipants возвращает участников без построения отчёта.
func (s *Service) ListParticipants(transcript string) []string {
	return ListParticipants(transcript)
}

func distinctSenders(msgs []domain.EnrichedMessage) int {
	seen := make(map[string]struct{})
	for _, m := range msgs {
		seen[m.Sender] = struct{}{}
	}
	return len(seen)
}

// reportCacheKey — ключ снимка: хэш транскрипта плюс конфигурация прогона.
func reportCacheKey(transcript string, req domain.AnalysisRequest) string {
	sum := sha256.Sum256([]byte(transcript))
	return fmt.Sprintf("report:%s:%t:%s", hex.EncodeToString(sum[:]), req.DayFirst, req.SelectedUser)
}

// TranscriptHash — стабильный идентификатор загруженного транскрипта.
func TranscriptHash(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return hex.EncodeToString(sum[:])
}
