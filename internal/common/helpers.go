// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
)

// PluralizeVouches возвращает правильную форму слова «поручительство» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "поручительство" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "поручительства" (2, 3, 4, 22, ...)
//   - Остальные случаи → "поручительств" (0, 5-20, 25-30, 100, ...)
//
// Примеры:
//
//	PluralizeVouches(1)  → "поручительство"
//	PluralizeVouches(3)  → "поручительства"
//	PluralizeVouches(11) → "поручительств"
func PluralizeVouches(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	// Единственное число: 1, 21, 31, 101 (но НЕ 11, 111)
	if lastDigit == 1 && lastTwoDigits != 11 {
		return "поручительство"
	}

	// Малое множественное: 2-4, 22-24, 32-34 (но НЕ 12-14)
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "поручительства"
	}

	// Большое множественное: 0, 5-20, 25-30, 100, ...
	return "поручительств"
}

// FormatVouchCount форматирует счётчик в читабельную строку.
// Пример: FormatVouchCount(3) → "3 поручительства"
func FormatVouchCount(n int) string {
	return fmt.Sprintf("%d %s", n, PluralizeVouches(n))
}

// PluralizeRecords возвращает правильную форму слова «запись».
func PluralizeRecords(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "запись"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "записи"
	}
	return "записей"
}

// moscowLocation — часовой пояс отчётов. Если tzdata недоступна
// (минимальный контейнер) — фиксированный UTC+3 вручную.
func moscowLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// GetMoscowTime возвращает текущее время в часовом поясе Москвы.
// Используется для дат в отчётах аудита и именах выгрузок.
func GetMoscowTime() time.Time {
	return time.Now().In(moscowLocation())
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
// Используется для отображения дат поручительств.
func FormatDateTime(t time.Time) string {
	return t.In(moscowLocation()).Format("02.01.2006 15:04")
}
