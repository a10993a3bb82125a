// Package audit сводит реестр: сверяет авторитетный счётчик с фактическими
// записями, проверяет теги на подделку и ведёт разбор расхождений.
// recon.go — чистое планирование сверки, без походов в базу.
package audit

import (
	"time"

	"serotonyl.ru/vouch-bot/internal/features/vouch"
)

// ReconPlan — что нужно сделать с записями одного участника,
// чтобы они сошлись с авторитетным счётчиком.
type ReconPlan struct {
	Diff      int           // счётчик - записи на момент планирования
	Create    []vouch.Vouch // недостающие записи (синтез от ревьюера)
	RemoveIDs []int64       // лишние записи, старые первыми
	Shortfall int           // сколько записей синтезировать не вышло
}

// Consistent: план пустой, участник уже сошёлся.
func (p ReconPlan) Consistent() bool {
	return p.Diff == 0
}

// PlanRecon сравнивает счётчик с записями и строит план.
// records обязаны прийти отсортированными old-first по (created_at, id) —
// это единое каноничное правило выбора удаляемых записей.
//
//   - diff > 0: счётчик заявляет больше, чем записано — синтезируем diff
//     админских записей от имени ревьюера, каждая со свежей меткой времени.
//     Если у ревьюера уже есть запись за эту цель, синтез нарушил бы
//     инвариант «одна пара — одна запись» потока сообщества: такие записи
//     пропускаются, недобор попадает в Shortfall, а не теряется молча.
//   - diff < 0: записей больше, чем счётчик признаёт — помечаем на удаление
//     ровно |diff| самых старых, ни одной лишней.
//   - diff == 0: план пустой.
//
// Счётчик план не трогает никогда: когда его касался администратор,
// именно счётчик считается более авторитетным сигналом.
func PlanRecon(reviewerID, targetID int64, vouchCount int, records []vouch.Vouch, now time.Time) ReconPlan {
	diff := vouchCount - len(records)
	plan := ReconPlan{Diff: diff}

	switch {
	case diff > 0:
		for _, rec := range records {
			if rec.VoucherID == reviewerID {
				plan.Shortfall = diff
				return plan
			}
		}
		plan.Create = make([]vouch.Vouch, 0, diff)
		for i := 0; i < diff; i++ {
			plan.Create = append(plan.Create, vouch.Vouch{
				VoucherID: reviewerID,
				VouchedID: targetID,
				// Свежие и различимые метки: записи не склеиваются
				CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			})
		}

	case diff < 0:
		need := -diff
		plan.RemoveIDs = make([]int64, 0, need)
		for i := 0; i < need && i < len(records); i++ {
			plan.RemoveIDs = append(plan.RemoveIDs, records[i].ID)
		}
	}

	return plan
}
