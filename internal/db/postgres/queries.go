// Package postgres — вспомогательные функции для работы с БД.
// queries.go содержит общие утилиты: миграции, ретраи занятой базы
// и полный экспорт реестра.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/common"
)

// ExecMigrationSQL выполняет один SQL-запрос миграции в транзакции.
// Если запрос упадёт — транзакция откатится автоматически.
//
// Параметры:
//   - ctx: контекст
//   - pool: пул соединений
//   - version: номер миграции (для записи в schema_migrations)
//   - sql: SQL-код миграции
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	// Проверяем, не была ли эта миграция уже применена
	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		// Миграция уже применена — пропускаем
		return nil
	}

	// Выполняем SQL миграции
	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	// Записываем версию миграции
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	// Фиксируем транзакцию
	return tx.Commit(ctx)
}

// WithRetry выполняет операцию с ретраями на занятой базе.
// Дедлоки и конфликты сериализации повторяются с короткой паузой,
// пока не истечёт общий таймаут — после него наружу уходит
// common.ErrStorageBusy, а не вечное ожидание.
//
// Операция должна быть идемпотентной ЦЕЛИКОМ (одна транзакция):
// частично применённый запрос не должен оставаться в базе.
func WithRetry(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	backoff := 50 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if time.Now().Add(backoff).After(deadline) {
			log.WithError(err).WithField("attempts", attempt).Warn("База занята дольше таймаута")
			return common.ErrStorageBusy
		}

		log.WithError(err).WithField("attempt", attempt).Debug("База занята, повторяем")
		select {
		case <-ctx.Done():
			return common.ErrStorageBusy
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

// isRetryable: повторять имеет смысл только конфликты одновременного доступа.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available
		return true
	}
	return false
}

// exportTables — все отношения реестра в порядке восстановления.
var exportTables = []string{
	"members",
	"vouches",
	"vouch_reasons",
	"vouch_cooldowns",
	"unvouchable",
}

// CopyAll выгружает реестр целиком: сырые строки каждой таблицы через COPY,
// а не производный отчёт. Формат — CSV-секции с заголовком вида "-- table".
// Годится для точного восстановления таблица за таблицей.
func CopyAll(ctx context.Context, pool *pgxpool.Pool) ([]byte, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить соединение: %w", err)
	}
	defer conn.Release()

	var buf bytes.Buffer
	for _, table := range exportTables {
		fmt.Fprintf(&buf, "-- %s\n", table)
		sql := fmt.Sprintf("COPY %s TO STDOUT WITH CSV HEADER", table)
		if _, err := conn.Conn().PgConn().CopyTo(ctx, &buf, sql); err != nil {
			return nil, fmt.Errorf("экспорт таблицы %s: %w", table, err)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
