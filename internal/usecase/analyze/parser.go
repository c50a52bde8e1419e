package analyze

import (
	"regexp"
	"sort"
	"strings"

	"wa-chat-insights/internal/domain"
)

var (
	timestampRe = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4},\s\d{1,2}:\d{2}\s?(?:AM\s|PM\s|am\s|pm\s)?-\s`)
	dateRe      = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)
	timeRe      = regexp.MustCompile(`\d{1,2}:\d{2}\s?(?:AM|PM|am|pm)?`)
	senderRe    = regexp.MustCompile(`^(.+?):\s`)
)

// Parse разбивает сырой текст экспорта на записи по меткам времени.
// Переводы строк схлопываются в пробелы, поэтому многострочные сообщения
// остаются в теле предыдущей записи. Строки без префикса "Имя: " получают
// отправителя-сентинел. Парсер не валидирует: несовпавшие метки времени
// просто уменьшают число записей.
func Parse(raw string) []domain.RawMessage {
	text := strings.ReplaceAll(raw, " ", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	stamps := timestampRe.FindAllString(text, -1)
	segments := timestampRe.Split(text, -1)
	// Текст до первой метки времени — не сообщение.
	if len(segments) > 0 {
		segments = segments[1:]
	}

	msgs := make([]domain.RawMessage, 0, len(stamps))
	for i, stamp := range stamps {
		if i >= len(segments) {
			break
		}
		sender := domain.SystemSender
		body := segments[i]
		if loc := senderRe.FindStringSubmatchIndex(body); loc != nil {
			sender = body[loc[2]:loc[3]]
			body = body[loc[1]:]
		}
		msgs = append(msgs, domain.RawMessage{
			Date:   dateRe.FindString(stamp),
			Time:   timeRe.FindString(stamp),
			Sender: sender,
			Body:   body,
		})
	}
	return msgs
}

// ListParticipants возвращает отправителей транскрипта: отсортированный
// список без сентинела, с фильтром "Everyone" первым элементом.
func ListParticipants(raw string) []string {
	msgs := Parse(raw)
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
	sort.Strings(users)
	return append([]string{domain.EveryoneFilter}, users...)
}
