package analyze

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"
	"mvdan.cc/xurls/v2"

	"wa-chat-insights/internal/domain"
)

var urlRe = xurls.Relaxed()

// weekdayOrder — канонический порядок для презентации.
var weekdayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ComputeStats строит агрегированную статистику по текстовым сообщениям.
// counts — категории, посчитанные до фильтрации; topWords ограничивает
// таблицу частых слов. Пустой вход даёт нулевую статистику без ошибок.
func ComputeStats(textMsgs []domain.EnrichedMessage, counts domain.CategoryCounts, stop domain.StopWordSet, topWords int) domain.ChatStats {
	stats := domain.ChatStats{
		MessageCount: len(textMsgs),
		MediaCount:   counts.Media,
		DeletedCount: counts.Deleted,
		SystemCount:  counts.System,
	}

	for _, m := range textMsgs {
		stats.WordCount += len(strings.Fields(m.Body))
		stats.LinkCount += len(urlRe.FindAllString(m.Body, -1))
	}

	stats.EmojiTable, stats.Emoji = tallyEmoji(textMsgs)
	stats.CommonWords = commonWords(textMsgs, stop, topWords)
	stats.WordCloudText = wordCloudText(textMsgs, stop)
	stats.MonthlyLine = monthlyTimeline(textMsgs)
	stats.DailyLine = dailyTimeline(textMsgs)
	stats.WeekdayCounts = weekdayCounts(textMsgs)
	stats.MonthCounts = valueCounts(textMsgs, func(m domain.EnrichedMessage) string { return m.MonthName })
	stats.HourHeatmap = hourHeatmap(textMsgs)
	stats.UserActivity = userActivity(textMsgs)
	return stats
}

// tallyEmoji собирает частоты эмодзи посимвольно, как членство символа в
// таблице эмодзи. Сортировка по убыванию стабильна: равные частоты
// сохраняют порядок первого появления.
func tallyEmoji(msgs []domain.EnrichedMessage) ([]domain.FreqEntry, domain.EmojiStats) {
	freq := make(map[string]int)
	var order []string
	for _, m := range msgs {
		for _, r := range m.Body {
			ch := string(r)
			if !gomoji.ContainsEmoji(ch) {
				continue
			}
			if _, ok := freq[ch]; !ok {
				order = append(order, ch)
			}
			freq[ch]++
		}
	}

	table := make([]domain.FreqEntry, 0, len(order))
	total := 0
	for _, ch := range order {
		table = append(table, domain.FreqEntry{Token: ch, Count: freq[ch]})
		total += freq[ch]
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].Count > table[j].Count })

	es := domain.EmojiStats{Total: total, Unique: len(table)}
	if len(msgs) > 0 {
		es.PerMessage = round2(float64(total) / float64(len(msgs)))
	}
	return table, es
}

func commonWords(msgs []domain.EnrichedMessage, stop domain.StopWordSet, limit int) []domain.FreqEntry {
	freq := make(map[string]int)
	var order []string
	for _, m := range msgs {
		for _, word := range strings.Fields(strings.ToLower(m.Body)) {
			if stop.Contains(word) {
				continue
			}
			if _, ok := freq[word]; !ok {
				order = append(order, word)
			}
			freq[word]++
		}
	}

	table := make([]domain.FreqEntry, 0, len(order))
	for _, word := range order {
		table = append(table, domain.FreqEntry{Token: word, Count: freq[word]})
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].Count > table[j].Count })
	if limit > 0 && len(table) > limit {
		table = table[:limit]
	}
	return table
}

// wordCloudText — очищенный от стоп-слов корпус для внешнего рендера облака слов.
func wordCloudText(msgs []domain.EnrichedMessage, stop domain.StopWordSet) string {
	var parts []string
	for _, m := range msgs {
		for _, word := range strings.Fields(strings.ToLower(m.Body)) {
			if stop.Contains(word) {
				continue
			}
			parts = append(parts, word)
		}
	}
	return strings.Join(parts, " ")
}

func monthlyTimeline(msgs []domain.EnrichedMessage) []domain.TimelinePoint {
	type key struct{ year, month int }
	grouped := make(map[key]int)
	for _, m := range msgs {
		grouped[key{m.Year, m.Month}]++
	}

	keys := make([]key, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	line := make([]domain.TimelinePoint, 0, len(keys))
	for _, k := range keys {
		line = append(line, domain.TimelinePoint{
			Year:  k.year,
			Month: k.month,
			Label: fmt.Sprintf("%d-%d", k.month, k.year),
			Count: grouped[k],
		})
	}
	return line
}

func dailyTimeline(msgs []domain.EnrichedMessage) []domain.DailyPoint {
	grouped := make(map[string]domain.DailyPoint)
	for _, m := range msgs {
		day := time.Date(m.Timestamp.Year(), m.Timestamp.Month(), m.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
		k := day.Format("2006-01-02")
		p := grouped[k]
		p.Date = day
		p.Count++
		grouped[k] = p
	}

	line := make([]domain.DailyPoint, 0, len(grouped))
	for _, p := range grouped {
		line = append(line, p)
	}
	sort.Slice(line, func(i, j int) bool { return line[i].Date.Before(line[j].Date) })
	return line
}

// weekdayCounts всегда в каноническом порядке Monday..Sunday с нулями для
// отсутствующих дней: так требует презентация графика активности.
func weekdayCounts(msgs []domain.EnrichedMessage) []domain.ValueCount {
	freq := make(map[string]int)
	for _, m := range msgs {
		freq[m.Weekday]++
	}
	out := make([]domain.ValueCount, 0, len(weekdayOrder))
	for _, day := range weekdayOrder {
		out = append(out, domain.ValueCount{Label: day, Count: freq[day]})
	}
	return out
}

// valueCounts — частоты меток по убыванию, равные — в порядке появления.
func valueCounts(msgs []domain.EnrichedMessage, label func(domain.EnrichedMessage) string) []domain.ValueCount {
	freq := make(map[string]int)
	var order []string
	for _, m := range msgs {
		l := label(m)
		if _, ok := freq[l]; !ok {
			order = append(order, l)
		}
		freq[l]++
	}
	out := make([]domain.ValueCount, 0, len(order))
	for _, l := range order {
		out = append(out, domain.ValueCount{Label: l, Count: freq[l]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// hourHeatmap строит сводную таблицу день недели × часовой интервал.
// Интервал часа h помечается "h-(h+1)", полночь — "00-1", последний час
// суток заворачивается в "23-00". Отсутствующие ячейки равны нулю.
func hourHeatmap(msgs []domain.EnrichedMessage) domain.Heatmap {
	buckets := make([]string, 24)
	index := make(map[string]int, 24)
	for h := 0; h < 24; h++ {
		buckets[h] = HourBucket(h)
		index[buckets[h]] = h
	}

	cells := make([][]int, len(weekdayOrder))
	for i := range cells {
		cells[i] = make([]int, len(buckets))
	}
	rowIndex := make(map[string]int, len(weekdayOrder))
	for i, day := range weekdayOrder {
		rowIndex[day] = i
	}

	for _, m := range msgs {
		r, ok := rowIndex[m.Weekday]
		if !ok {
			continue
		}
		cells[r][index[HourBucket(m.Hour)]]++
	}

	return domain.Heatmap{Rows: append([]string(nil), weekdayOrder...), Buckets: buckets, Cells: cells}
}

// HourBucket возвращает метку часового интервала для часа 0..23.
func HourBucket(hour int) string {
	switch hour {
	case 0:
		return "00-1"
	case 23:
		return "23-00"
	default:
		return fmt.Sprintf("%d-%d", hour, hour+1)
	}
}

func userActivity(msgs []domain.EnrichedMessage) []domain.UserActivity {
	freq := make(map[string]int)
	var order []string
	for _, m := range msgs {
		if _, ok := freq[m.Sender]; !ok {
			order = append(order, m.Sender)
		}
		freq[m.Sender]++
	}

	out := make([]domain.UserActivity, 0, len(order))
	for _, user := range order {
		out = append(out, domain.UserActivity{User: user, Count: freq[user]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(msgs) > 0 {
		for i := range out {
			out[i].Percent = round2(float64(out[i].Count) / float64(len(msgs)) * 100)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
