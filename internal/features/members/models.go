// Package members управляет участниками чата: регистрацией, ролями, счётчиком
// поручительств. models.go описывает структуры данных для таблицы members.
package members

import "time"

// Member представляет участника чата в базе данных.
// Каждый пользователь, вступивший в FLOOD_CHAT_ID, автоматически
// создаётся в этой таблице.
//
// VouchCount — единственный источник правды о том, сколько поручительств
// у участника. Администратор может выставить его напрямую, и тогда он
// расходится с количеством записей в таблице vouches — эту разницу
// сводит аудит, а не молчаливое обнуление.
type Member struct {
	ID          int64     `db:"id"`           // Автоинкрементный ID записи в БД
	UserID      int64     `db:"user_id"`      // Telegram user ID (уникальный)
	Username    string    `db:"username"`     // @username (может быть пустым)
	FirstName   string    `db:"first_name"`   // Имя пользователя
	LastName    string    `db:"last_name"`    // Фамилия (может быть пустой)
	DisplayName string    `db:"display_name"` // Отображаемое имя, как мы его видели последним (с тегом)
	Role        *string   `db:"role"`         // Роль, назначенная админом (до 64 символов, может быть nil)
	IsAdmin     bool      `db:"is_admin"`     // Флаг администратора
	IsBanned    bool      `db:"is_banned"`    // Флаг бана

	VouchCount      int  `db:"vouch_count"`      // Авторитетный счётчик поручительств (>= 0)
	TrackingEnabled bool `db:"tracking_enabled"` // Участник не отказался от учёта

	JoinedAt  time.Time `db:"joined_at"`  // Когда вступил в чат
	CreatedAt time.Time `db:"created_at"` // Когда запись создана в БД
	UpdatedAt time.Time `db:"updated_at"` // Последнее обновление записи
}

// UpdateInfo содержит данные для обновления информации о пользователе.
// Используется, когда пользователь возвращается в чат и его имя/username могли измениться.
type UpdateInfo struct {
	Username  string // Новый @username
	FirstName string // Новое имя
	LastName  string // Новая фамилия
}

// Handle возвращает неизменяемый идентификатор участника для отображения.
// Если есть @username — возвращает его, иначе — имя + фамилию.
// На него откатывается синхронизатор тегов, когда имя очистилось в пустоту.
func (m *Member) Handle() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}

// CurrentDisplayName: то имя, от которого отталкиваются синхронизатор
// тегов и проверка. Если отображаемое имя ещё не сохраняли — берём
// имя + фамилию из Telegram: самодельный тег живёт именно там,
// и @username его бы спрятал.
func (m *Member) CurrentDisplayName() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	if name != "" {
		return name
	}
	return m.Handle()
}
