package analyze

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wa-chat-insights/internal/domain"
)

// Плейсхолдеры экспорта WhatsApp. Хвостовой пробел значим: тело сообщения
// заканчивается пробелом, оставшимся от схлопнутого перевода строки.
const (
	mediaPlaceholder   = "<Media omitted> "
	deletedPlaceholder = "This message was deleted "
)

var dayFirstLayouts = []string{"2/1/06", "2/1/2006"}
var monthFirstLayouts = []string{"1/2/06", "1/2/2006"}
var timeLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// Normalize превращает сырые записи в обогащённые: парсит дату и время с
// учётом порядка день/месяц, выводит календарные поля и классифицирует
// сообщение. Ошибка разбора даты означает неверную конфигурацию dayFirst
// и прерывает прогон целиком.
func Normalize(raw []domain.RawMessage, dayFirst bool) ([]domain.EnrichedMessage, error) {
	layouts := monthFirstLayouts
	if dayFirst {
		layouts = dayFirstLayouts
	}

	out := make([]domain.EnrichedMessage, 0, len(raw))
	for _, r := range raw {
		date, err := parseFirst(layouts, r.Date)
		if err != nil {
			return nil, fmt.Errorf("разбор даты %q: %w", r.Date, err)
		}
		clock, err := parseFirst(timeLayouts, strings.TrimSpace(r.Time))
		if err != nil {
			return nil, fmt.Errorf("разбор времени %q: %w", r.Time, err)
		}
		ts := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)

		m := domain.EnrichedMessage{
			Sender:    r.Sender,
			Body:      r.Body,
			Timestamp: ts,
			Weekday:   ts.Weekday().String(),
			MonthName: ts.Month().String(),
			Kind:      classify(r),
		}
		// Календарные поля берутся из отформатированного значения, а не
		// арифметикой: это воспроизводит исходное поведение построчного
		// среза отформатированной даты.
		stamp := ts.Format("2006-01-02 15:04:05")
		m.Year = mustDigits(stamp[0:4])
		m.Month = mustDigits(stamp[5:7])
		m.Day = mustDigits(stamp[8:10])
		m.Hour = mustDigits(stamp[11:13])
		out = append(out, m)
	}
	return out, nil
}

func parseFirst(layouts []string, value string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func mustDigits(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// classify относит запись ровно к одной категории.
func classify(r domain.RawMessage) domain.MessageKind {
	switch {
	case r.Body == mediaPlaceholder:
		return domain.KindMedia
	case r.Body == deletedPlaceholder:
		return domain.KindDeleted
	case r.Sender == domain.SystemSender:
		return domain.KindSystem
	default:
		return domain.KindText
	}
}

// CountCategories считает сообщения каждой категории до любой фильтрации.
func CountCategories(msgs []domain.EnrichedMessage) domain.CategoryCounts {
	var c domain.CategoryCounts
	for _, m := range msgs {
		switch m.Kind {
		case domain.KindMedia:
			c.Media++
		case domain.KindDeleted:
			c.Deleted++
		case domain.KindSystem:
			c.System++
		default:
			c.Text++
		}
	}
	return c
}

// TextOnly возвращает только текстовые сообщения, не трогая вход.
func TextOnly(msgs []domain.EnrichedMessage) []domain.EnrichedMessage {
	out := make([]domain.EnrichedMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind == domain.KindText {
			out = append(out, m)
		}
	}
	return out
}

// FilterSender оставляет сообщения одного участника.
func FilterSender(msgs []domain.EnrichedMessage, sender string) []domain.EnrichedMessage {
	out := make([]domain.EnrichedMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}
