// Package members — service.go содержит бизнес-логику управления участниками.
// Сервис координирует регистрацию новых участников, проверку членства,
// привилегии и список ревьюеров.
package members

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/config"
)

// Service управляет участниками чата.
// Связывает обработчики Telegram-событий с репозиторием БД.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

// NewService создаёт новый сервис участников.
func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// HandleNewMember обрабатывает вступление нового пользователя в чат.
// Если пользователь уже есть в базе (перезашёл) — обновляет его данные.
// Если пользователь новый — создаёт запись с включённым учётом поручительств.
func (s *Service) HandleNewMember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	existing, _ := s.repo.GetByUserID(ctx, userID)
	if existing != nil {
		// Пользователь уже зарегистрирован — обновляем данные
		log.WithField("user_id", userID).Info("Участник перезашёл в чат, обновляем данные")
		return s.repo.UpdateInfo(ctx, userID, UpdateInfo{
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		})
	}

	member := &Member{
		UserID:          userID,
		Username:        username,
		FirstName:       firstName,
		LastName:        lastName,
		IsAdmin:         false,
		IsBanned:        false,
		TrackingEnabled: true,
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return fmt.Errorf("ошибка регистрации нового участника: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"username": username,
	}).Info("Новый участник зарегистрирован")

	return nil
}

// IsMember проверяет, является ли пользователь участником чата.
// Используется для валидации доступа к DM.
func (s *Service) IsMember(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// GetByUserID возвращает участника по его Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetByUsername возвращает участника по @username (без @).
func (s *Service) GetByUsername(ctx context.Context, username string) (*Member, error) {
	return s.repo.GetByUsername(ctx, username)
}

// EnsureMember гарантирует, что пользователь есть в базе, и освежает
// имя/username. Свежее имя важно проверке тегов: самодельный «счётчик»
// участник носит именно в имени.
func (s *Service) EnsureMember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		return s.repo.UpdateInfo(ctx, userID, UpdateInfo{
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		})
	}
	return s.HandleNewMember(ctx, userID, username, firstName, lastName)
}

// IsPrivileged: привилегированный актор обходит валидацию поручительств.
// Привилегия берётся из флага is_admin в базе или из ADMIN_IDS конфига.
func (s *Service) IsPrivileged(ctx context.Context, userID int64) bool {
	for _, id := range s.cfg.AdminIDs {
		if id == userID {
			return true
		}
	}
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return false
	}
	return m.IsAdmin
}

// IsReviewer проверяет право участника разбирать расхождения.
func (s *Service) IsReviewer(ctx context.Context, userID int64) bool {
	if s.IsPrivileged(ctx, userID) {
		return true
	}
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return false
	}
	return m.Role != nil && *m.Role == s.cfg.ReviewerRole
}

// Reviewers возвращает всех, кому рассылаются уведомления о расхождениях.
func (s *Service) Reviewers(ctx context.Context) ([]*Member, error) {
	return s.repo.GetReviewers(ctx, s.cfg.ReviewerRole)
}

// Tracked возвращает участников с включённым учётом (для синка тегов).
func (s *Service) Tracked(ctx context.Context) ([]*Member, error) {
	return s.repo.GetTracked(ctx)
}

// WithVouches возвращает участников с ненулевым счётчиком (для сверки).
func (s *Service) WithVouches(ctx context.Context) ([]*Member, error) {
	return s.repo.GetWithVouches(ctx)
}

// SetTracking переключает участие в учёте поручительств.
func (s *Service) SetTracking(ctx context.Context, userID int64, enabled bool) error {
	return s.repo.SetTracking(ctx, userID, enabled)
}

// RememberDisplayName сохраняет отображаемое имя, увиденное в чате.
func (s *Service) RememberDisplayName(ctx context.Context, userID int64, name string) {
	if name == "" {
		return
	}
	if err := s.repo.UpdateDisplayName(ctx, userID, name); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось сохранить отображаемое имя")
	}
}
