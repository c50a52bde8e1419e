package domain

import "time"

// MessageKind классифицирует сообщение после нормализации.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindMedia   MessageKind = "media"
	KindDeleted MessageKind = "deleted"
	KindSystem  MessageKind = "system"
)

// SystemSender — зарезервированное имя отправителя для системных строк экспорта.
const SystemSender = "Notifications"

// EveryoneFilter — сентинел "без фильтра по участнику".
const EveryoneFilter = "Everyone"

// RawMessage — одна запись транскрипта в том виде, в каком её выделил парсер.
type RawMessage struct {
	Date   string
	Time   string
	Sender string
	Body   string
}

// EnrichedMessage — запись после нормализации с производными календарными полями.
type EnrichedMessage struct {
	Sender    string
	Body      string
	Timestamp time.Time
	Year      int
	Month     int
	Day       int
	Hour      int
	Weekday   string
	MonthName string
	Kind      MessageKind
}

// CategoryCounts хранит количество сообщений каждой категории до фильтрации.
type CategoryCounts struct {
	Text    int
	Media   int
	Deleted int
	System  int
}

// Total возвращает сумму по всем категориям.
func (c CategoryCounts) Total() int {
	return c.Text + c.Media + c.Deleted + c.System
}

// FreqEntry — позиция частотной таблицы (эмодзи или слова).
type FreqEntry struct {
	Token string
	Count int
}

// ValueCount — количество сообщений для категориальной метки (день недели, месяц).
type ValueCount struct {
	Label string
	Count int
}

// TimelinePoint — точка помесячной временной шкалы.
type TimelinePoint struct {
	Year  int
	Month int
	Label string
	Count int
}

// DailyPoint — точка подневной временной шкалы.
type DailyPoint struct {
	Date  time.Time
	Count int
}

// Heatmap — сводная таблица активности день недели × часовой интервал.
// Rows следует каноническому порядку Monday..Sunday, Buckets содержит все
// 24 часовых интервала, отсутствующие ячейки заполнены нулями.
type Heatmap struct {
	Rows    []string
	Buckets []string
	Cells   [][]int
}

// EmojiStats — сводные показатели использования эмодзи.
type EmojiStats struct {
	Total      int
	Unique     int
	PerMessage float64
}

// UserActivity — количество и доля сообщений участника.
type UserActivity struct {
	User    string
	Count   int
	Percent float64
}

// ChatStats — результат движка агрегированной статистики.
type ChatStats struct {
	MessageCount  int
	WordCount     int
	MediaCount    int
	DeletedCount  int
	SystemCount   int
	LinkCount     int
	EmojiTable    []FreqEntry
	Emoji         EmojiStats
	CommonWords   []FreqEntry
	WordCloudText string
	MonthlyLine   []TimelinePoint
	DailyLine     []DailyPoint
	WeekdayCounts []ValueCount
	MonthCounts   []ValueCount
	HourHeatmap   Heatmap
	UserActivity  []UserActivity
}

// ResponseEvent — один факт ответа: смена отправителя в пределах окна.
type ResponseEvent struct {
	Initiator  string
	Responder  string
	GapMinutes float64
}

// UserResponseProfile — агрегаты откликов одного участника.
type UserResponseProfile struct {
	User           string
	ResponseCount  int
	MeanMinutes    float64
	MeanLabel      string
	MedianMinutes  float64
	MinMinutes     float64
	MaxMinutes     float64
	Responsiveness float64
}

// PairResponseStat — средний отклик упорядоченной пары участников.
type PairResponseStat struct {
	Initiator    string
	Responder    string
	MeanMinutes  float64
	MeanLabel    string
	Interactions int
}

// ResponseReport — результат движка восстановления переписки.
type ResponseReport struct {
	Events      []ResponseEvent
	QuickEvents []ResponseEvent
	Profiles    []UserResponseProfile
	Pairs       []PairResponseStat
}

// AnalysisRequest — конфигурация одного прогона анализа, задаётся вызывающим.
type AnalysisRequest struct {
	DayFirst     bool
	SelectedUser string
}

// Report — неизменяемый снимок результатов для внешнего рендера.
type Report struct {
	ID           string
	GeneratedAt  time.Time
	SelectedUser string
	DayFirst     bool
	Participants []string
	Stats        ChatStats
	Responses    *ResponseReport
}

// User описывает учётную запись пользователя сервиса.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Session — явный контекст аутентифицированного запроса.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ReportRecord — сохранённый снимок отчёта в истории пользователя.
type ReportRecord struct {
	ID             int64
	ReportID       string
	UserID         int64
	SelectedUser   string
	TranscriptHash string
	Snapshot       []byte
	CreatedAt      time.Time
}

// ActivityEvent — запись журнала действий пользователя.
type ActivityEvent struct {
	UserID     int64
	Action     string
	OccurredAt time.Time
}

// ReportJob — задача на фоновое построение отчёта.
type ReportJob struct {
	JobID        string `json:"job_id"`
	UserID       int64  `json:"user_id"`
	Transcript   string `json:"transcript"`
	DayFirst     bool   `json:"day_first"`
	SelectedUser string `json:"selected_user"`
	NotifyEmail  string `json:"notify_email,omitempty"`
}
