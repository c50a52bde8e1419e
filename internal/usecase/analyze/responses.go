package analyze

import (
	"fmt"
	"sort"

	"wa-chat-insights/internal/domain"
)

// DefaultMaxGapMinutes — пауза длиннее суток считается разрывом беседы,
// а не ответом.
const DefaultMaxGapMinutes = 1440

const quickResponseMinutes = 60

// ResponseOptions управляет восстановлением переписки. Исключение
// медиа/удалённых/системных записей сделано явной настройкой, а не
// побочным эффектом порядка фильтраций.
type ResponseOptions struct {
	IncludeNonText bool
	MaxGapMinutes  float64
}

// InferResponses восстанавливает смены реплик из хронологического потока
// сообщений и агрегирует отклики по участникам и упорядоченным парам.
// Для пустого или одиночного входа возвращает пустой отчёт без ошибок.
func InferResponses(msgs []domain.EnrichedMessage, opts ResponseOptions) domain.ResponseReport {
	if opts.MaxGapMinutes <= 0 {
		opts.MaxGapMinutes = DefaultMaxGapMinutes
	}
	if !opts.IncludeNonText {
		msgs = TextOnly(msgs)
	}

	ordered := make([]domain.EnrichedMessage, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })

	report := domain.ResponseReport{}
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.Sender == cur.Sender {
			continue
		}
		gap := cur.Timestamp.Sub(prev.Timestamp).Minutes()
		if gap < 0 || gap > opts.MaxGapMinutes {
			continue
		}
		ev := domain.ResponseEvent{Initiator: prev.Sender, Responder: cur.Sender, GapMinutes: gap}
		report.Events = append(report.Events, ev)
		if gap <= quickResponseMinutes {
			report.QuickEvents = append(report.QuickEvents, ev)
		}
	}

	users := participantsInOrder(ordered)
	report.Profiles = buildProfiles(users, report.Events)
	report.Pairs = buildPairs(profileUsers(report.Profiles), report.Events)
	return report
}

// participantsInOrder — участники в порядке первого появления, без сентинела.
func participantsInOrder(msgs []domain.EnrichedMessage) []string {
	seen := make(map[string]struct{})
	var users []string
	for _, m := range msgs {
		if m.Sender == domain.SystemSender {
			continue
		}
		if _, ok := seen[m.Sender]; ok {
			continue
		}
		seen[m.Sender] = struct{}{}
		users = append(users, m.Sender)
	}
	return users
}

func buildProfiles(users []string, events []domain.ResponseEvent) []domain.UserResponseProfile {
	var profiles []domain.UserResponseProfile
	for _, user := range users {
		var gaps []float64
		initiated := 0
		for _, ev := range events {
			if ev.Responder == user {
				gaps = append(gaps, ev.GapMinutes)
			}
			if ev.Initiator == user {
				initiated++
			}
		}
		if len(gaps) == 0 {
			continue
		}

		// Деление на ноль исключено явно: пользователь, которому никто не
		// писал, получает нулевую отзывчивость.
		responsiveness := 0.0
		if initiated > 0 {
			responsiveness = float64(len(gaps)) / float64(initiated) * 100
		}

		profiles = append(profiles, domain.UserResponseProfile{
			User:           user,
			ResponseCount:  len(gaps),
			MeanMinutes:    round2(mean(gaps)),
			MeanLabel:      FormatMinutes(round2(mean(gaps))),
			MedianMinutes:  round2(median(gaps)),
			MinMinutes:     round2(minOf(gaps)),
			MaxMinutes:     round2(maxOf(gaps)),
			Responsiveness: round2(responsiveness),
		})
	}
	return profiles
}

// buildPairs агрегирует события по каждой упорядоченной паре с хотя бы
// одним взаимодействием; результат отсортирован по возрастанию среднего.
func buildPairs(users []string, events []domain.ResponseEvent) []domain.PairResponseStat {
	var pairs []domain.PairResponseStat
	for _, initiator := range users {
		for _, responder := range users {
			if initiator == responder {
				continue
			}
			var gaps []float64
			for _, ev := range events {
				if ev.Initiator == initiator && ev.Responder == responder {
					gaps = append(gaps, ev.GapMinutes)
				}
			}
			if len(gaps) == 0 {
				continue
			}
			pairs = append(pairs, domain.PairResponseStat{
				Initiator:    initiator,
				Responder:    responder,
				MeanMinutes:  round2(mean(gaps)),
				MeanLabel:    FormatMinutes(round2(mean(gaps))),
				Interactions: len(gaps),
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].MeanMinutes < pairs[j].MeanMinutes })
	return pairs
}

func profileUsers(profiles []domain.UserResponseProfile) []string {
	users := make([]string, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, p.User)
	}
	return users
}

// FormatMinutes отображает длительность так же, как презентационный слой:
// "2h 5m" от часа и выше, иначе "4.5m".
func FormatMinutes(minutes float64) string {
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", int(minutes)/60, int(minutes)%60)
	}
	return fmt.Sprintf("%.1fm", minutes)
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
