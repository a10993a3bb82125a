// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасная чистка протухших
// расхождений и ночная контрольная сверка реестра.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/features/audit"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron         *cron.Cron
	auditService *audit.Service
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(auditService *audit.Service) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		auditService: auditService,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Каждый час выбрасываем расхождения старше окна хранения
	s.cron.AddFunc("0 * * * *", func() {
		log.Debug("[CRON] Чистка протухших расхождений")
		s.auditService.SweepNotifications()
	})

	// Ночная сверка в 03:00 по Москве: только отчёт, без мутаций
	s.cron.AddFunc("0 3 * * *", func() {
		log.Info("[CRON] Ночная контрольная сверка реестра")
		if err := s.auditService.NightlyAudit(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка ночной сверки")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
