// Package members — repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memberColumns = `id, user_id, username, first_name, last_name, display_name, role,
	       is_admin, is_banned, vouch_count, tracking_enabled,
	       joined_at, created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create добавляет нового участника в таблицу members.
// На конфликте по user_id обновляет только имя/username
// (не трогает роль/бан/админку/счётчик поручительств).
func (r *Repository) Create(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name, display_name,
		                     role, is_admin, is_banned, tracking_enabled, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		m.UserID, m.Username, m.FirstName, m.LastName, m.DisplayName,
		m.Role, m.IsAdmin, m.IsBanned, m.TrackingEnabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// GetByUserID: если не найден — ошибка с pgx.ErrNoRows (errors.Is(err, pgx.ErrNoRows) == true)
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id = $1`
	m, err := r.scanOne(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("участник не найден (user_id=%d): %w", userID, err)
		}
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return m, nil
}

// GetByUsername: если не найден — ошибка с pgx.ErrNoRows
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE LOWER(username) = LOWER($1)`
	m, err := r.scanOne(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("участник не найден (username=%s): %w", username, err)
		}
		return nil, fmt.Errorf("ошибка чтения участника (username=%s): %w", username, err)
	}
	return m, nil
}

func (r *Repository) Exists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE user_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

func (r *Repository) UpdateInfo(ctx context.Context, userID int64, info UpdateInfo) error {
	query := `
		UPDATE members
		SET username = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.Exec(ctx, query, userID, info.Username, info.FirstName, info.LastName); err != nil {
		return fmt.Errorf("ошибка обновления данных участника: %w", err)
	}
	return nil
}

// UpdateDisplayName сохраняет отображаемое имя, как его видит чат.
// Вызывается и когда имя поменял сам участник, и после наших переименований.
func (r *Repository) UpdateDisplayName(ctx context.Context, userID int64, displayName string) error {
	query := `UPDATE members SET display_name = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, displayName); err != nil {
		return fmt.Errorf("ошибка обновления отображаемого имени: %w", err)
	}
	return nil
}

func (r *Repository) UpdateRole(ctx context.Context, userID int64, role string) error {
	query := `UPDATE members SET role = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("ошибка обновления роли: %w", err)
	}
	return nil
}

// SetTracking включает/выключает учёт поручительств для участника.
func (r *Repository) SetTracking(ctx context.Context, userID int64, enabled bool) error {
	query := `UPDATE members SET tracking_enabled = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, enabled); err != nil {
		return fmt.Errorf("ошибка переключения учёта: %w", err)
	}
	return nil
}

// GetReviewers возвращает участников, имеющих право разбирать расхождения:
// админов и обладателей роли ревьюера. Забаненные исключаются.
func (r *Repository) GetReviewers(ctx context.Context, reviewerRole string) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE is_banned = FALSE AND (is_admin = TRUE OR role = $1)
		ORDER BY first_name
	`
	return r.queryMembers(ctx, query, reviewerRole)
}

// GetTracked возвращает участников с включённым учётом (для синка тегов).
func (r *Repository) GetTracked(ctx context.Context) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE tracking_enabled = TRUE AND is_banned = FALSE
		ORDER BY user_id
	`
	return r.queryMembers(ctx, query)
}

// GetWithVouches возвращает участников с ненулевым счётчиком
// (кандидаты на сверку «по всему реестру»).
func (r *Repository) GetWithVouches(ctx context.Context) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE vouch_count > 0
		ORDER BY user_id
	`
	return r.queryMembers(ctx, query)
}

func (r *Repository) scanOne(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.DisplayName,
		&m.Role, &m.IsAdmin, &m.IsBanned, &m.VouchCount, &m.TrackingEnabled,
		&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...interface{}) ([]*Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.DisplayName,
			&m.Role, &m.IsAdmin, &m.IsBanned, &m.VouchCount, &m.TrackingEnabled,
			&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}

	return out, nil
}
