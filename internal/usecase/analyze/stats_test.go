package analyze

import (
	"testing"
	"time"

	"wa-chat-insights/internal/domain"
)

func textMsg(ts time.Time, sender, body string) domain.EnrichedMessage {
	stamp := ts.Format("2006-01-02 15:04:05")
	return domain.EnrichedMessage{
		Sender:    sender,
		Body:      body,
		Timestamp: ts,
		Year:      mustDigits(stamp[0:4]),
		Month:     mustDigits(stamp[5:7]),
		Day:       mustDigits(stamp[8:10]),
		Hour:      mustDigits(stamp[11:13]),
		Weekday:   ts.Weekday().String(),
		MonthName: ts.Month().String(),
		Kind:      domain.KindText,
	}
}

func TestComputeStatsScalars(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "hello world "),
		textMsg(base.Add(time.Minute), "Bob", "смотри https://example.com и example.org "),
	}
	counts := domain.CategoryCounts{Text: 2, Media: 3, Deleted: 1, System: 2}
	stats := ComputeStats(msgs, counts, domain.StopWordSet{}, 20)

	if stats.MessageCount != 2 {
		t.Fatalf("ожидали 2 сообщения, получили %d", stats.MessageCount)
	}
	if stats.WordCount != 6 {
		t.Fatalf("ожидали 6 слов, получили %d", stats.WordCount)
	}
	if stats.LinkCount != 2 {
		t.Fatalf("каждая ссылка считается отдельно: ожидали 2, получили %d", stats.LinkCount)
	}
	if stats.MediaCount != 3 || stats.DeletedCount != 1 || stats.SystemCount != 2 {
		t.Fatalf("счётчики категорий должны браться до фильтрации: %+v", stats)
	}
}

func TestEmojiTallyStable(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "привет 😂😂🔥 "),
		textMsg(base.Add(time.Minute), "Bob", "ага 🔥👍 "),
	}
	table, es := tallyEmoji(msgs)
	if len(table) != 3 {
		t.Fatalf("ожидали 3 уникальных эмодзи, получили %d", len(table))
	}
	if table[0].Token != "😂" || table[0].Count != 2 {
		t.Fatalf("первым должен идти 😂×2, получили %+v", table[0])
	}
	// 🔥 тоже встречается дважды, но появился позже — стабильная сортировка
	// сохраняет порядок первого появления.
	if table[1].Token != "🔥" || table[1].Count != 2 {
		t.Fatalf("вторым должен идти 🔥×2, получили %+v", table[1])
	}
	if es.Total != 5 || es.Unique != 3 {
		t.Fatalf("неожиданные сводные показатели: %+v", es)
	}
	if es.PerMessage != 2.5 {
		t.Fatalf("ожидали 2.5 эмодзи на сообщение, получили %v", es.PerMessage)
	}
}

func TestCommonWordsStopListAndLimit(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	stop := domain.StopWordSet{"the": {}, "и": {}}
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "The cat and the dog и кот "),
		textMsg(base.Add(time.Minute), "Bob", "cat cat dog "),
	}
	words := commonWords(msgs, stop, 2)
	if len(words) != 2 {
		t.Fatalf("ожидали срез до 2 позиций, получили %d", len(words))
	}
	if words[0].Token != "cat" || words[0].Count != 3 {
		t.Fatalf("ожидали cat×3, получили %+v", words[0])
	}
	for _, w := range words {
		if w.Token == "the" || w.Token == "и" {
			t.Fatalf("стоп-слово просочилось в таблицу: %q", w.Token)
		}
	}
}

func TestMonthlyTimelineChronological(t *testing.T) {
	msgs := []domain.EnrichedMessage{
		textMsg(time.Date(2023, 2, 1, 9, 0, 0, 0, time.UTC), "A", "x "),
		textMsg(time.Date(2022, 12, 5, 9, 0, 0, 0, time.UTC), "A", "x "),
		textMsg(time.Date(2023, 2, 9, 9, 0, 0, 0, time.UTC), "B", "x "),
		textMsg(time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC), "B", "x "),
	}
	line := monthlyTimeline(msgs)
	if len(line) != 3 {
		t.Fatalf("ожидали 3 группы, получили %d", len(line))
	}
	if line[0].Label != "12-2022" || line[1].Label != "1-2023" || line[2].Label != "2-2023" {
		t.Fatalf("нарушен хронологический порядок: %+v", line)
	}
	if line[2].Count != 2 {
		t.Fatalf("февраль должен содержать 2 сообщения, получили %d", line[2].Count)
	}
}

func TestWeekdayCountsCanonicalOrder(t *testing.T) {
	msgs := []domain.EnrichedMessage{
		textMsg(time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC), "A", "x "), // Sunday
		textMsg(time.Date(2023, 1, 2, 9, 0, 0, 0, time.UTC), "A", "x "), // Monday
	}
	counts := weekdayCounts(msgs)
	if len(counts) != 7 {
		t.Fatalf("ожидали все 7 дней недели, получили %d", len(counts))
	}
	if counts[0].Label != "Monday" || counts[6].Label != "Sunday" {
		t.Fatalf("нарушен канонический порядок: %v..%v", counts[0].Label, counts[6].Label)
	}
	if counts[0].Count != 1 || counts[6].Count != 1 || counts[1].Count != 0 {
		t.Fatalf("неожиданные частоты: %+v", counts)
	}
}

func TestHourBucketWraparound(t *testing.T) {
	if got := HourBucket(23); got != "23-00" {
		t.Fatalf("час 23 должен попадать в 23-00, получили %q", got)
	}
	if got := HourBucket(0); got != "00-1" {
		t.Fatalf("полночь должна попадать в 00-1, получили %q", got)
	}
	if got := HourBucket(9); got != "9-10" {
		t.Fatalf("ожидали 9-10, получили %q", got)
	}
}

func TestHourHeatmapFillsZeros(t *testing.T) {
	msgs := []domain.EnrichedMessage{
		textMsg(time.Date(2023, 1, 2, 23, 30, 0, 0, time.UTC), "A", "x "), // Monday 23h
	}
	hm := hourHeatmap(msgs)
	if len(hm.Rows) != 7 || len(hm.Buckets) != 24 {
		t.Fatalf("ожидали сетку 7×24, получили %d×%d", len(hm.Rows), len(hm.Buckets))
	}
	if hm.Buckets[23] != "23-00" {
		t.Fatalf("последний интервал должен быть 23-00, получили %q", hm.Buckets[23])
	}
	if hm.Cells[0][23] != 1 {
		t.Fatalf("понедельник 23-00 должен содержать 1, получили %d", hm.Cells[0][23])
	}
	if hm.Cells[3][5] != 0 {
		t.Fatalf("пустые ячейки должны заполняться нулями")
	}
}

func TestUserActivityPercent(t *testing.T) {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []domain.EnrichedMessage{
		textMsg(base, "Alice", "a "),
		textMsg(base.Add(time.Minute), "Alice", "b "),
		textMsg(base.Add(2*time.Minute), "Bob", "c "),
	}
	activity := userActivity(msgs)
	if activity[0].User != "Alice" || activity[0].Count != 2 {
		t.Fatalf("ожидали Alice×2 первой, получили %+v", activity[0])
	}
	if activity[0].Percent != 66.67 {
		t.Fatalf("ожидали 66.67%%, получили %v", activity[0].Percent)
	}
	if activity[1].Percent != 33.33 {
		t.Fatalf("ожидали 33.33%%, получили %v", activity[1].Percent)
	}
}

func TestComputeStatsEmptyInput(t *testing.T) {
	stats := ComputeStats(nil, domain.CategoryCounts{}, domain.StopWordSet{}, 20)
	if stats.MessageCount != 0 || stats.WordCount != 0 || stats.LinkCount != 0 {
		t.Fatalf("пустой вход должен давать нулевые скаляры: %+v", stats)
	}
	if len(stats.EmojiTable) != 0 || len(stats.CommonWords) != 0 || len(stats.MonthlyLine) != 0 {
		t.Fatalf("пустой вход должен давать пустые таблицы")
	}
	if len(stats.WeekdayCounts) != 7 {
		t.Fatalf("дни недели присутствуют всегда, получили %d", len(stats.WeekdayCounts))
	}
}
