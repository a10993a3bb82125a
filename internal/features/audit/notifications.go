// Package audit — notifications.go хранит уведомления о расхождениях.
// Машина состояний: Open → Resolved(accepted) | Resolved(rejected) | Expired.
// Всё в памяти процесса; жизненный цикл — создание при обнаружении,
// удаление на первой реакции или часовой метлой после ретеншена.
package audit

import (
	"fmt"
	"sync"
	"time"
)

// MessageRef — непрозрачный идентификатор доставленного сообщения.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

func (r MessageRef) key() string {
	return fmt.Sprintf("%d:%d", r.ChatID, r.MessageID)
}

// Case — одно обнаруженное расхождение. Рассылается нескольким ревьюерам,
// поэтому на него может указывать несколько сообщений; первая реакция
// на любое из них закрывает все.
type Case struct {
	MemberID   int64        // Кого касается аномалия
	Claimed    int          // Сколько заявил тег
	Stored     int          // Сколько в счётчике
	ViaChannel bool         // Доставлено fallback-бродкастом в канал ревьюеров
	Refs       []MessageRef // Все доставленные сообщения
	CreatedAt  time.Time
}

// NotificationStore — разделяемое состояние обработчика реакций и метлы.
// «Проверить и удалить» здесь один атомарный шаг: двойная обработка
// одного расхождения исключена.
type NotificationStore struct {
	mu        sync.Mutex
	byMessage map[string]*Case
	retention time.Duration
	now       func() time.Time // подменяется в тестах
}

// NewNotificationStore создаёт хранилище с окном хранения retention.
func NewNotificationStore(retention time.Duration) *NotificationStore {
	return &NotificationStore{
		byMessage: make(map[string]*Case),
		retention: retention,
		now:       time.Now,
	}
}

// Put регистрирует расхождение по всем его сообщениям.
func (s *NotificationStore) Put(c *Case) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	for _, ref := range c.Refs {
		s.byMessage[ref.key()] = c
	}
}

// Take атомарно забирает расхождение по сообщению и удаляет ВСЕ его ключи.
// Повторный Take того же (уже закрытого) расхождения вернёт false —
// повторная реакция становится no-op.
func (s *NotificationStore) Take(ref MessageRef) (*Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byMessage[ref.key()]
	if !ok {
		return nil, false
	}
	for _, r := range c.Refs {
		delete(s.byMessage, r.key())
	}
	return c, true
}

// Sweep выкидывает открытые расхождения старше окна хранения.
// Возвращает, сколько расхождений истекло. Вызывается часовым кроном.
func (s *NotificationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	expired := make(map[*Case]struct{})
	for _, c := range s.byMessage {
		if c.CreatedAt.Before(cutoff) {
			expired[c] = struct{}{}
		}
	}
	for c := range expired {
		for _, r := range c.Refs {
			delete(s.byMessage, r.key())
		}
	}
	return len(expired)
}

// Open возвращает число открытых расхождений (для логов).
func (s *NotificationStore) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[*Case]struct{})
	for _, c := range s.byMessage {
		seen[c] = struct{}{}
	}
	return len(seen)
}
