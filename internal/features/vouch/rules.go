// Package vouch — rules.go содержит чистые правила выдачи поручительств.
// Никаких побочных эффектов: правила работают на срезе Snapshot,
// который собирает сервис.
package vouch

import (
	"time"

	"serotonyl.ru/vouch-bot/internal/common"
)

// Validate проверяет допустимость поручительства в строгом порядке:
//  1. нельзя поручиться за самого себя;
//  2. нельзя поручиться повторно (только для непривилегированных);
//  3. за участника из unvouchable не поручаются (только для непривилегированных);
//  4. участник должен участвовать в учёте (только для непривилегированных).
//
// Привилегированный актор обходит ВСЕ четыре проверки, включая первую:
// это нужно корректирующим потокам (сверка, ресеты).
func Validate(s Snapshot, privileged bool) error {
	if privileged {
		return nil
	}
	if s.ActorID == s.TargetID {
		return common.ErrSelfVouch
	}
	if s.AlreadyVouched {
		return common.ErrAlreadyVouched
	}
	if s.TargetUnvouchable {
		return common.ErrUnvouchable
	}
	if !s.TargetTracking {
		return common.ErrTrackingDisabled
	}
	return nil
}

// WithinCooldown: попадает ли момент последнего поручительства в скользящее
// окно window относительно now. nil означает «ещё не поручался».
// Граница не включается: ровно через window после последней выдачи
// поручаться снова можно.
func WithinCooldown(last *time.Time, now time.Time, window time.Duration) bool {
	if last == nil {
		return false
	}
	return now.Sub(*last) < window
}

// AdminAdjustment — сколько поручительств выставлено администратором
// поверх фактических записей. Отрицательной разница не бывает:
// избыток записей — это повод для сверки, а не «отрицательная» поправка.
func AdminAdjustment(vouchCount, recordCount int) int {
	if d := vouchCount - recordCount; d > 0 {
		return d
	}
	return 0
}
