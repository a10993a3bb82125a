// Package vouch — service.go содержит бизнес-логику поручительств.
// Порядок на выдаче: гейт попыток → кулдаун → чистые правила → транзакция.
package vouch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/common"
	"serotonyl.ru/vouch-bot/internal/config"
	"serotonyl.ru/vouch-bot/internal/db/postgres"
	"serotonyl.ru/vouch-bot/internal/features/members"
)

// Service управляет реестром поручительств.
type Service struct {
	repo          *Repository
	memberService *members.Service
	gate          *Gate
	cfg           *config.Config
}

// NewService создаёт сервис поручительств.
func NewService(repo *Repository, memberService *members.Service, cfg *config.Config) *Service {
	return &Service{
		repo:          repo,
		memberService: memberService,
		gate:          NewGate(cfg.VouchBurstLimit, cfg.VouchBurstDecay),
		cfg:           cfg,
	}
}

// Vouch выдаёт поручительство actor → target.
// privileged обходит гейт, кулдаун и правила валидации —
// это путь корректирующих операций.
func (s *Service) Vouch(ctx context.Context, actorID, targetID int64, reason string, privileged bool) error {
	if !privileged {
		// Гейт попыток: отклонённая попытка счётчик не трогает
		if !s.gate.Acquire(actorID) {
			return common.ErrBurstLimit
		}

		onCooldown, err := s.onCooldown(ctx, actorID)
		if err != nil {
			return err
		}
		if onCooldown {
			return common.ErrCooldownActive
		}
	}

	snap, err := s.snapshot(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if err := Validate(*snap, privileged); err != nil {
		return err
	}

	err = postgres.WithRetry(ctx, s.cfg.DBBusyTimeout, func(ctx context.Context) error {
		return s.repo.Grant(ctx, actorID, targetID, reason)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"voucher_id": actorID,
		"vouched_id": targetID,
		"privileged": privileged,
	}).Info("Поручительство выдано")
	return nil
}

// snapshot собирает срез состояния для чистых правил.
func (s *Service) snapshot(ctx context.Context, actorID, targetID int64) (*Snapshot, error) {
	target, err := s.memberService.GetByUserID(ctx, targetID)
	if err != nil {
		return nil, common.ErrUserNotFound
	}
	already, err := s.repo.HasVouched(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	unvouchable, err := s.repo.IsUnvouchable(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ActorID:           actorID,
		TargetID:          targetID,
		AlreadyVouched:    already,
		TargetUnvouchable: unvouchable,
		TargetTracking:    target.TrackingEnabled,
	}, nil
}

// onCooldown: поручался ли актор в течение скользящего окна VOUCH_COOLDOWN.
func (s *Service) onCooldown(ctx context.Context, actorID int64) (bool, error) {
	last, err := s.repo.LastVouchAt(ctx, actorID)
	if err != nil {
		return false, err
	}
	return WithinCooldown(last, time.Now().UTC(), s.cfg.VouchCooldown), nil
}

// GetStats возвращает сводку по участнику: счётчик, записи, админскую
// поправку и флаги. Поправка считается, а не отбрасывается.
func (s *Service) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	m, err := s.memberService.GetByUserID(ctx, userID)
	if err != nil {
		return nil, common.ErrUserNotFound
	}
	records, err := s.repo.RecordCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	unvouchable, err := s.repo.IsUnvouchable(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		VouchCount:      m.VouchCount,
		RecordCount:     records,
		AdminAdjustment: AdminAdjustment(m.VouchCount, records),
		Unvouchable:     unvouchable,
		TrackingEnabled: m.TrackingEnabled,
	}, nil
}

// SetCount выставляет счётчик напрямую (привилегированная операция).
func (s *Service) SetCount(ctx context.Context, userID int64, count int) error {
	if count < 0 {
		return common.ErrNegativeCount
	}
	if _, err := s.memberService.GetByUserID(ctx, userID); err != nil {
		return common.ErrUserNotFound
	}
	return postgres.WithRetry(ctx, s.cfg.DBBusyTimeout, func(ctx context.Context) error {
		return s.repo.SetCount(ctx, userID, count)
	})
}

// Reset обнуляет участника: счётчик и все записи за него.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	return postgres.WithRetry(ctx, s.cfg.DBBusyTimeout, func(ctx context.Context) error {
		return s.repo.Reset(ctx, userID)
	})
}

// SetUnvouchable добавляет/убирает участника из списка unvouchable.
func (s *Service) SetUnvouchable(ctx context.Context, userID int64, flag bool) error {
	return s.repo.SetUnvouchable(ctx, userID, flag)
}

// IsUnvouchable проверяет членство в списке unvouchable.
func (s *Service) IsUnvouchable(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsUnvouchable(ctx, userID)
}

// AddReason сохраняет причину задним числом. Требует существующей записи.
func (s *Service) AddReason(ctx context.Context, voucherID, vouchedID int64, reason string) error {
	has, err := s.repo.HasVouched(ctx, voucherID, vouchedID)
	if err != nil {
		return err
	}
	if !has {
		return common.ErrUserNotFound
	}
	return s.repo.UpsertReason(ctx, voucherID, vouchedID, reason)
}

// Vouchers возвращает список поручившихся за участника.
func (s *Service) Vouchers(ctx context.Context, vouchedID int64) ([]Vouch, error) {
	return s.repo.Vouchers(ctx, vouchedID)
}

// Repo отдаёт репозиторий аудиту: сверка работает с теми же таблицами.
func (s *Service) Repo() *Repository {
	return s.repo
}
