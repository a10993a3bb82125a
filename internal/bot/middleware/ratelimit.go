// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает частоту команд на пользователя.
// Окно фиксированное: счётчик живёт window от первой команды,
// потом начинается заново. Это защита от спама командами,
// а не от всплеска поручительств — тем занимается vouch.Gate.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[int64]*userWindow
	limit   int
	window  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

type userWindow struct {
	start time.Time
	count int
}

// NewRateLimiter создаёт лимитер и запускает фоновую чистку.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[int64]*userWindow),
		limit:   limit,
		window:  window,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close останавливает фоновую горутину очистки.
// Его надо вызывать на shutdown (иначе cleanup будет жить вечно).
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow сообщает, можно ли обработать очередную команду пользователя.
func (rl *RateLimiter) Allow(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[userID]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.windows[userID] = &userWindow{start: now, count: 1}
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for userID, w := range rl.windows {
				if now.Sub(w.start) >= rl.window {
					delete(rl.windows, userID)
				}
			}
			rl.mu.Unlock()
		}
	}
}
