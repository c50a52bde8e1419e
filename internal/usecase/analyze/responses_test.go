package analyze

import (
	"testing"
	"time"

	"wa-chat-insights/internal/domain"
)

func TestInferResponsesSenderChangeOnly(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "hey "),
		textMsg(base.Add(5*time.Minute), "Bob", "hi "),
		textMsg(base.Add(7*time.Minute), "Bob", "как дела? "),
	}
	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Events) != 1 {
		t.Fatalf("ожидали ровно 1 событие, получили %d", len(report.Events))
	}
	ev := report.Events[0]
	if ev.Initiator != "Alice" || ev.Responder != "Bob" {
		t.Fatalf("неожиданная пара: %+v", ev)
	}
	if ev.GapMinutes != 5.0 {
		t.Fatalf("ожидали паузу 5.0 минут, получили %v", ev.GapMinutes)
	}
	if len(report.QuickEvents) != 1 {
		t.Fatalf("пауза в 5 минут — быстрый ответ")
	}
}

func TestInferResponsesGapCap(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "hey "),
		textMsg(base.Add(1500*time.Minute), "Bob", "hi "),
	}
	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Events) != 0 {
		t.Fatalf("пауза длиннее суток не должна давать событий, получили %d", len(report.Events))
	}
	if len(report.Profiles) != 0 {
		t.Fatalf("без событий нет и профилей: %+v", report.Profiles)
	}

	// Тот же диалог с расширенным порогом событие даёт.
	report = InferResponses(msgs, ResponseOptions{MaxGapMinutes: 2000})
	if len(report.Events) != 1 {
		t.Fatalf("порог 2000 минут должен пропускать событие")
	}
	if len(report.QuickEvents) != 0 {
		t.Fatalf("1500 минут — не быстрый ответ")
	}
}

func TestInferResponsesProfiles(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "a "),
		textMsg(base.Add(4*time.Minute), "Bob", "b "),
		textMsg(base.Add(10*time.Minute), "Alice", "c "),
		textMsg(base.Add(18*time.Minute), "Bob", "d "),
	}
	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Events) != 3 {
		t.Fatalf("ожидали 3 события, получили %d", len(report.Events))
	}
	if len(report.Profiles) != 2 {
		t.Fatalf("ожидали профили обоих участников, получили %d", len(report.Profiles))
	}

	var bob domain.UserResponseProfile
	for _, p := range report.Profiles {
		if p.User == "Bob" {
			bob = p
		}
	}
	if bob.ResponseCount != 2 {
		t.Fatalf("Bob ответил дважды, получили %d", bob.ResponseCount)
	}
	if bob.MeanMinutes != 6.0 || bob.MedianMinutes != 6.0 {
		t.Fatalf("ожидали среднее и медиану 6.0, получили %v / %v", bob.MeanMinutes, bob.MedianMinutes)
	}
	if bob.MinMinutes != 4.0 || bob.MaxMinutes != 8.0 {
		t.Fatalf("неожиданный разброс: %+v", bob)
	}
	if bob.MeanLabel != "6.0m" {
		t.Fatalf("средний отклик должен нести готовую метку, получили %q", bob.MeanLabel)
	}
	// Bob инициировал один ответ Alice и сам ответил дважды: 2/1×100.
	if bob.Responsiveness != 200.0 {
		t.Fatalf("ожидали отзывчивость 200, получили %v", bob.Responsiveness)
	}
}

func TestInferResponsesZeroResponsiveness(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "a "),
		textMsg(base.Add(time.Minute), "Bob", "b "),
	}
	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Profiles) != 1 {
		t.Fatalf("профиль положен только ответившим, получили %d", len(report.Profiles))
	}
	p := report.Profiles[0]
	if p.User != "Bob" {
		t.Fatalf("ожидали профиль Bob, получили %q", p.User)
	}
	// Bob никому не писал первым — отзывчивость нулевая, без деления на ноль.
	if p.Responsiveness != 0.0 {
		t.Fatalf("ожидали отзывчивость 0, получили %v", p.Responsiveness)
	}
}

func TestInferResponsesPairsAscending(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "a "),
		textMsg(base.Add(30*time.Minute), "Bob", "b "),
		textMsg(base.Add(32*time.Minute), "Alice", "c "),
	}
	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Pairs) != 2 {
		t.Fatalf("ожидали 2 упорядоченные пары, получили %d", len(report.Pairs))
	}
	if report.Pairs[0].MeanMinutes > report.Pairs[1].MeanMinutes {
		t.Fatalf("пары должны идти по возрастанию среднего: %+v", report.Pairs)
	}
	if report.Pairs[0].Initiator != "Bob" || report.Pairs[0].Responder != "Alice" {
		t.Fatalf("самая быстрая пара — Bob→Alice (2 минуты): %+v", report.Pairs[0])
	}
	if report.Pairs[0].Interactions != 1 {
		t.Fatalf("ожидали 1 взаимодействие, получили %d", report.Pairs[0].Interactions)
	}
	if report.Pairs[0].MeanLabel != "2.0m" {
		t.Fatalf("пара должна нести готовую метку среднего, получили %q", report.Pairs[0].MeanLabel)
	}
}

func TestInferResponsesNonTextToggle(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	media := textMsg(base.Add(2*time.Minute), "Bob", mediaPlaceholder)
	media.Kind = domain.KindMedia
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "a "),
		media,
		textMsg(base.Add(9*time.Minute), "Alice", "c "),
	}

	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Events) != 0 {
		t.Fatalf("по умолчанию медиа не участвует: получили %d событий", len(report.Events))
	}

	report = InferResponses(msgs, ResponseOptions{IncludeNonText: true})
	if len(report.Events) != 2 {
		t.Fatalf("с IncludeNonText медиа образует обе смены реплик, получили %d", len(report.Events))
	}
}

func TestInferResponsesUnsortedInput(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base.Add(5*time.Minute), "Bob", "hi "),
		textMsg(base, "Alice", "hey "),
	}
	report := InferResponses(msgs, ResponseOptions{})
	if len(report.Events) != 1 {
		t.Fatalf("вход должен сортироваться перед сканированием, получили %d событий", len(report.Events))
	}
	if report.Events[0].GapMinutes != 5.0 {
		t.Fatalf("ожидали паузу 5.0, получили %v", report.Events[0].GapMinutes)
	}
	if msgs[0].Sender != "Bob" {
		t.Fatalf("исходный срез не должен переупорядочиваться")
	}
}

func TestInferResponsesDegenerateInput(t *testing.T) {
	report := InferResponses(nil, ResponseOptions{})
	if len(report.Events) != 0 || len(report.Profiles) != 0 || len(report.Pairs) != 0 {
		t.Fatalf("пустой вход должен давать пустой отчёт: %+v", report)
	}

	single := []domain.EnrichedMessage{textMsg(time.Now().UTC(), "Alice", "a ")}
	report = InferResponses(single, ResponseOptions{})
	if len(report.Events) != 0 {
		t.Fatalf("одиночное сообщение не образует событий")
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := FormatMinutes(125); got != "2h 5m" {
		t.Fatalf("ожидали \"2h 5m\", получили %q", got)
	}
	if got := FormatMinutes(4.5); got != "4.5m" {
		t.Fatalf("ожидали \"4.5m\", получили %q", got)
	}
	if got := FormatMinutes(60); got != "1h 0m" {
		t.Fatalf("ровно час отображается как \"1h 0m\", получили %q", got)
	}
}
