package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	StopWordsPath string `envconfig:"STOPWORDS_PATH" default:"stop_hinglish.txt"`

	Analysis struct {
		DayFirst        bool    `envconfig:"ANALYSIS_DAY_FIRST" default:"true"`
		TopWordsLimit   int     `envconfig:"TOP_WORDS_LIMIT" default:"20"`
		MaxGapMinutes   float64 `envconfig:"RESPONSE_MAX_GAP_MIN" default:"1440"`
		IncludeNonText  bool    `envconfig:"RESPONSE_INCLUDE_NON_TEXT" default:"false"`
		SessionTTLHours int     `envconfig:"SESSION_TTL_HOURS" default:"24"`
	} `envconfig:""`

	SMTP struct {
		Host     string `envconfig:"SMTP_SERVER" default:"smtp.gmail.com"`
		Port     int    `envconfig:"SMTP_PORT" default:"587"`
		Sender   string `envconfig:"SENDER_EMAIL"`
		Password string `envconfig:"SENDER_PASSWORD"`
	} `envconfig:""`

	Queues struct {
		Report        string `envconfig:"REPORT_QUEUE_KEY" default:"report_jobs"`
		AMQPURL       string `envconfig:"AMQP_URL"`
		ManagementURL string `envconfig:"AMQP_MANAGEMENT_URL"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
