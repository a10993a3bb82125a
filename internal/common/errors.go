// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки валидации поручительств.
// Сообщаются напрямую инициатору и никогда не ретраятся.
var (
	// ErrSelfVouch — попытка поручиться за самого себя
	ErrSelfVouch = errors.New("нельзя поручиться за самого себя")
	// ErrAlreadyVouched — этот поручитель уже поручился за этого участника
	ErrAlreadyVouched = errors.New("вы уже поручились за этого участника")
	// ErrUnvouchable — за участника нельзя поручиться (чёрный список)
	ErrUnvouchable = errors.New("за этого участника нельзя поручиться")
	// ErrTrackingDisabled — участник отключил учёт поручительств
	ErrTrackingDisabled = errors.New("участник отключил учёт поручительств")
	// ErrCooldownActive — кулдаун поручителя ещё не истёк
	ErrCooldownActive = errors.New("вы уже поручались за последние 24 часа")
	// ErrBurstLimit — слишком много попыток подряд
	ErrBurstLimit = errors.New("слишком много попыток подряд, подождите минуту")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrNegativeCount — счётчик поручительств не может быть отрицательным
	ErrNegativeCount = errors.New("счётчик поручительств не может быть отрицательным")
)

// Ошибки хранилища.
var (
	// ErrStorageBusy — база занята дольше допустимого таймаута
	ErrStorageBusy = errors.New("хранилище занято, попробуйте позже")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
	// ErrRoleTooLong — роль длиннее 64 символов
	ErrRoleTooLong = errors.New("роль слишком длинная (максимум 64 символа)")
)
