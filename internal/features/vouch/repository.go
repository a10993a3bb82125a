// Package vouch — repository.go выполняет операции с таблицами vouches,
// vouch_reasons, vouch_cooldowns, unvouchable и счётчиком в members.
// Многошаговые мутации идут одной транзакцией: либо всё, либо ничего.
package vouch

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицами реестра поручительств.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий поручительств.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Grant атомарно применяет успешное поручительство:
// запись в vouches, +1 к счётчику, причина (если есть), штамп кулдауна.
func (r *Repository) Grant(ctx context.Context, voucherID, vouchedID int64, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	if _, err := tx.Exec(ctx,
		`INSERT INTO vouches (voucher_id, vouched_id, created_at) VALUES ($1, $2, $3)`,
		voucherID, vouchedID, now,
	); err != nil {
		return fmt.Errorf("ошибка записи поручительства: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE members SET vouch_count = vouch_count + 1, updated_at = NOW() WHERE user_id = $1`,
		vouchedID,
	); err != nil {
		return fmt.Errorf("ошибка обновления счётчика: %w", err)
	}

	if reason != "" {
		if err := upsertReason(ctx, tx, voucherID, vouchedID, reason, now); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO vouch_cooldowns (user_id, last_vouch_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET last_vouch_at = EXCLUDED.last_vouch_at
	`, voucherID, now); err != nil {
		return fmt.Errorf("ошибка записи кулдауна: %w", err)
	}

	return tx.Commit(ctx)
}

// HasVouched проверяет, есть ли запись (voucher, vouched).
func (r *Repository) HasVouched(ctx context.Context, voucherID, vouchedID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM vouches WHERE voucher_id = $1 AND vouched_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, voucherID, vouchedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки поручительства: %w", err)
	}
	return exists, nil
}

// RecordCount возвращает фактическое число записей за участника.
func (r *Repository) RecordCount(ctx context.Context, vouchedID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM vouches WHERE vouched_id = $1`, vouchedID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return count, nil
}

// Records возвращает записи за участника, старые первыми.
// Порядок (created_at, id) — тот же, по которому сверка
// выбирает, что удалять.
func (r *Repository) Records(ctx context.Context, vouchedID int64) ([]Vouch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, voucher_id, vouched_id, created_at
		FROM vouches
		WHERE vouched_id = $1
		ORDER BY created_at, id
	`, vouchedID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записей: %w", err)
	}
	defer rows.Close()

	var out []Vouch
	for rows.Next() {
		var v Vouch
		if err := rows.Scan(&v.ID, &v.VoucherID, &v.VouchedID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// LastVouchAt: когда поручитель поручался в последний раз (nil — никогда).
func (r *Repository) LastVouchAt(ctx context.Context, voucherID int64) (*time.Time, error) {
	var t time.Time
	err := r.db.QueryRow(ctx,
		`SELECT last_vouch_at FROM vouch_cooldowns WHERE user_id = $1`, voucherID,
	).Scan(&t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения кулдауна: %w", err)
	}
	return &t, nil
}

// IsUnvouchable проверяет членство в списке unvouchable.
func (r *Repository) IsUnvouchable(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM unvouchable WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки unvouchable: %w", err)
	}
	return exists, nil
}

// SetUnvouchable добавляет/убирает участника из списка unvouchable.
func (r *Repository) SetUnvouchable(ctx context.Context, userID int64, flag bool) error {
	var err error
	if flag {
		_, err = r.db.Exec(ctx, `
			INSERT INTO unvouchable (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
		`, userID)
	} else {
		_, err = r.db.Exec(ctx, `DELETE FROM unvouchable WHERE user_id = $1`, userID)
	}
	if err != nil {
		return fmt.Errorf("ошибка изменения списка unvouchable: %w", err)
	}
	return nil
}

// SetCount выставляет счётчик напрямую (админская операция).
// Записи в vouches не трогаются — расхождение сводит сверка.
func (r *Repository) SetCount(ctx context.Context, userID int64, count int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE members SET vouch_count = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, count,
	)
	if err != nil {
		return fmt.Errorf("ошибка установки счётчика: %w", err)
	}
	return nil
}

// Reset атомарно обнуляет участника: счётчик в 0, все записи и причины
// за него удаляются.
func (r *Repository) Reset(ctx context.Context, vouchedID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE members SET vouch_count = 0, updated_at = NOW() WHERE user_id = $1`,
		vouchedID,
	); err != nil {
		return fmt.Errorf("ошибка обнуления счётчика: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM vouches WHERE vouched_id = $1`, vouchedID,
	); err != nil {
		return fmt.Errorf("ошибка удаления записей: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM vouch_reasons WHERE vouched_id = $1`, vouchedID,
	); err != nil {
		return fmt.Errorf("ошибка удаления причин: %w", err)
	}

	return tx.Commit(ctx)
}

// UpsertReason сохраняет причину поручительства (последняя побеждает).
func (r *Repository) UpsertReason(ctx context.Context, voucherID, vouchedID int64, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := upsertReason(ctx, tx, voucherID, vouchedID, reason, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ApplyReconciliation применяет план сверки одной транзакцией:
// синтезирует недостающие записи и удаляет лишние (по row id, чтобы
// не зацепить соседние записи той же пары). Счётчик участника
// НЕ трогается — сверка двигает записи к счётчику, а не наоборот.
func (r *Repository) ApplyReconciliation(ctx context.Context, create []Vouch, removeIDs []int64) error {
	if len(create) == 0 && len(removeIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, v := range create {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vouches (voucher_id, vouched_id, created_at) VALUES ($1, $2, $3)`,
			v.VoucherID, v.VouchedID, v.CreatedAt,
		); err != nil {
			return fmt.Errorf("ошибка синтеза записи: %w", err)
		}
	}
	for _, id := range removeIDs {
		if _, err := tx.Exec(ctx,
			`DELETE FROM vouches WHERE id = $1`, id,
		); err != nil {
			return fmt.Errorf("ошибка удаления записи: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Vouchers возвращает, кто поручился за участника (для !whovouched).
func (r *Repository) Vouchers(ctx context.Context, vouchedID int64) ([]Vouch, error) {
	return r.Records(ctx, vouchedID)
}

func upsertReason(ctx context.Context, tx pgx.Tx, voucherID, vouchedID int64, reason string, now time.Time) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO vouch_reasons (voucher_id, vouched_id, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (voucher_id, vouched_id)
		DO UPDATE SET reason = EXCLUDED.reason, created_at = EXCLUDED.created_at
	`, voucherID, vouchedID, reason, now); err != nil {
		return fmt.Errorf("ошибка записи причины: %w", err)
	}
	return nil
}
