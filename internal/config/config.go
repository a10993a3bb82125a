// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// ID чата, в котором бот работает (единственный разрешённый групповой чат)
	FloodChatID int64 `envconfig:"FLOOD_CHAT_ID" required:"true"`
	// Канал ревьюеров: сюда падают отчёты аудита и fallback-уведомления,
	// если никому из ревьюеров не удалось написать в личку.
	ReviewChatID int64 `envconfig:"REVIEW_CHAT_ID" default:"0"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"vouch_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько всего ждать занятую базу, прежде чем отдать пользователю ошибку.
	DBBusyTimeout time.Duration `envconfig:"DB_BUSY_TIMEOUT" default:"5s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Vouch ---
	// Кулдаун поручителя: сколько должно пройти с его прошлого поручительства.
	VouchCooldown time.Duration `envconfig:"VOUCH_COOLDOWN" default:"24h"`
	// Потолок одновременных попыток поручиться у одного пользователя.
	VouchBurstLimit int `envconfig:"VOUCH_BURST_LIMIT" default:"3"`
	// Через сколько списывается одна попытка из счётчика.
	VouchBurstDecay time.Duration `envconfig:"VOUCH_BURST_DECAY" default:"60s"`

	// --- Tags ---
	// Максимальная длина отображаемого имени вместе с тегом.
	// Кастомные титулы админов в Telegram ограничены 16 символами.
	TagMaxNameLength int `envconfig:"TAG_MAX_NAME_LENGTH" default:"16"`

	// --- Review ---
	// Роль участника, дающая право разбирать расхождения.
	ReviewerRole string `envconfig:"REVIEWER_ROLE" default:"reviewer"`
	// Сколько живёт неразобранное уведомление о расхождении.
	ReviewRetention time.Duration `envconfig:"REVIEW_RETENTION" default:"24h"`
	// Пауза между участниками в массовых операциях (reconcile всех, синк тегов),
	// чтобы не душить обработку команд и лимиты Telegram на переименования.
	BulkIterationPause time.Duration `envconfig:"BULK_ITERATION_PAUSE" default:"300ms"`

	// --- Rate Limiting (сообщения, не поручительства) ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureVouchEnabled bool `envconfig:"FEATURE_VOUCH_ENABLED" default:"true"`
	FeatureAuditEnabled bool `envconfig:"FEATURE_AUDIT_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.FloodChatID == 0 {
		return fmt.Errorf("FLOOD_CHAT_ID не задан или равен 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.VouchBurstLimit <= 0 {
		return fmt.Errorf("VOUCH_BURST_LIMIT должен быть > 0")
	}
	if c.VouchCooldown <= 0 {
		return fmt.Errorf("VOUCH_COOLDOWN должен быть > 0")
	}
	if c.TagMaxNameLength < 4 {
		return fmt.Errorf("TAG_MAX_NAME_LENGTH слишком маленький (минимум 4)")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
