// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/bot"
	"serotonyl.ru/vouch-bot/internal/bot/filters"
	"serotonyl.ru/vouch-bot/internal/config"
	"serotonyl.ru/vouch-bot/internal/db/postgres"
	"serotonyl.ru/vouch-bot/internal/features/admin"
	"serotonyl.ru/vouch-bot/internal/features/audit"
	"serotonyl.ru/vouch-bot/internal/features/members"
	"serotonyl.ru/vouch-bot/internal/features/tags"
	"serotonyl.ru/vouch-bot/internal/features/vouch"
	"serotonyl.ru/vouch-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Репозитории ===
	memberRepo := members.NewRepository(pool)
	vouchRepo := vouch.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	memberService := members.NewService(memberRepo, cfg)
	vouchService := vouch.NewService(vouchRepo, memberService, cfg)
	adminService := admin.NewService(adminRepo, memberRepo, cfg)

	renamer := bot.NewTitleRenamer(botAPI, cfg)
	synchronizer := tags.NewSynchronizer(memberService, vouchService, renamer, cfg)

	notifier := bot.NewNotifier(botAPI, cfg)
	store := audit.NewNotificationStore(cfg.ReviewRetention)
	auditService := audit.NewService(vouchService, memberService, synchronizer, store, notifier, cfg)

	// === 5. Обработчики ===
	vouchHandler := vouch.NewHandler(vouchService, memberService, synchronizer, botAPI)
	auditHandler := audit.NewHandler(auditService, memberService, synchronizer, botAPI)
	adminHandler := admin.NewHandler(adminService, memberService, botAPI)

	// === 6. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg.FloodChatID, memberService, botAPI)

	// === 7. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		memberService, adminService, auditService,
		vouchHandler, auditHandler, adminHandler,
		chatFilter,
	)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(auditService)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002Vouches},
		{3, migration003Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL,
    last_name VARCHAR(255),
    display_name VARCHAR(255),
    role VARCHAR(64),
    is_admin BOOLEAN DEFAULT FALSE,
    is_banned BOOLEAN DEFAULT FALSE,
    vouch_count INTEGER NOT NULL DEFAULT 0 CHECK (vouch_count >= 0),
    tracking_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    joined_at TIMESTAMP DEFAULT NOW(),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_user_id ON members(user_id);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
CREATE INDEX IF NOT EXISTS idx_members_vouch_count ON members(vouch_count) WHERE vouch_count > 0;
`

var migration002Vouches = `
CREATE TABLE IF NOT EXISTS vouches (
    id BIGSERIAL PRIMARY KEY,
    voucher_id BIGINT NOT NULL REFERENCES members(user_id),
    vouched_id BIGINT NOT NULL REFERENCES members(user_id),
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vouches_vouched ON vouches(vouched_id, created_at);
CREATE INDEX IF NOT EXISTS idx_vouches_pair ON vouches(voucher_id, vouched_id);
CREATE TABLE IF NOT EXISTS vouch_reasons (
    voucher_id BIGINT NOT NULL REFERENCES members(user_id),
    vouched_id BIGINT NOT NULL REFERENCES members(user_id),
    reason TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (voucher_id, vouched_id)
);
CREATE TABLE IF NOT EXISTS vouch_cooldowns (
    user_id BIGINT PRIMARY KEY REFERENCES members(user_id),
    last_vouch_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS unvouchable (
    user_id BIGINT PRIMARY KEY REFERENCES members(user_id),
    added_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

var migration003Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES members(user_id),
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`
