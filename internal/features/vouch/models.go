// Package vouch реализует реестр поручительств: учёт, правила выдачи,
// кулдауны и ограничитель попыток.
// models.go описывает структуры для таблиц vouches, vouch_reasons,
// vouch_cooldowns и unvouchable.
package vouch

import "time"

// Vouch — запись «поручитель → участник».
// Инвариант сообщества: максимум одна запись на упорядоченную пару
// (voucher_id, vouched_id) вне админского потока. Он держится проверкой
// HasVouched в правилах, а не констрейнтом: сверка имеет право
// синтезировать несколько админских записей от одного ревьюера,
// различимых по id и времени.
type Vouch struct {
	ID        int64     `db:"id"`         // Суррогатный ключ (порядок вставки)
	VoucherID int64     `db:"voucher_id"` // Кто поручился
	VouchedID int64     `db:"vouched_id"` // За кого поручились
	CreatedAt time.Time `db:"created_at"` // Когда
}

// Reason — необязательная аннотация к поручительству.
// Тот же ключ, что у Vouch; при повторе побеждает последняя запись.
type Reason struct {
	VoucherID int64     `db:"voucher_id"`
	VouchedID int64     `db:"vouched_id"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// Cooldown — одна строка на ПОРУЧИТЕЛЯ: когда он поручался в последний раз.
// Ограничивает выдачу, а не получение, и переживает рестарт процесса.
type Cooldown struct {
	UserID      int64     `db:"user_id"`
	LastVouchAt time.Time `db:"last_vouch_at"`
}

// Snapshot — срез состояния, на котором работают чистые правила валидации.
// Собирается сервисом из базы, сами правила в базу не ходят.
type Snapshot struct {
	ActorID           int64
	TargetID          int64
	AlreadyVouched    bool // Актор уже поручался за цель
	TargetUnvouchable bool // Цель в списке unvouchable
	TargetTracking    bool // Цель не отказалась от учёта
}

// Stats — сводка по участнику для команды !vouches.
type Stats struct {
	VouchCount      int  // Авторитетный счётчик
	RecordCount     int  // Фактических записей в реестре
	AdminAdjustment int  // max(0, счётчик - записи): сколько выставлено админом
	Unvouchable     bool
	TrackingEnabled bool
}
