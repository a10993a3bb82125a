package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(retention time.Duration, now time.Time) (*NotificationStore, *time.Time) {
	s := NewNotificationStore(retention)
	current := now
	s.now = func() time.Time { return current }
	return s, &current
}

func TestStoreFirstReactionWins(t *testing.T) {
	s, _ := newTestStore(24*time.Hour, time.Now())

	c := &Case{
		MemberID: 200,
		Claimed:  5,
		Stored:   2,
		Refs: []MessageRef{
			{ChatID: 10, MessageID: 1},
			{ChatID: 20, MessageID: 2},
			{ChatID: 30, MessageID: 3},
		},
	}
	s.Put(c)
	assert.Equal(t, 1, s.Open())

	// Первая реакция на любое из сообщений забирает расхождение
	got, ok := s.Take(MessageRef{ChatID: 20, MessageID: 2})
	require.True(t, ok)
	assert.Equal(t, int64(200), got.MemberID)

	// Реакции на остальные сообщения того же расхождения — no-op
	_, ok = s.Take(MessageRef{ChatID: 10, MessageID: 1})
	assert.False(t, ok)
	_, ok = s.Take(MessageRef{ChatID: 30, MessageID: 3})
	assert.False(t, ok)
	assert.Zero(t, s.Open())
}

func TestStoreTakeUnknownRef(t *testing.T) {
	s, _ := newTestStore(24*time.Hour, time.Now())
	_, ok := s.Take(MessageRef{ChatID: 1, MessageID: 1})
	assert.False(t, ok)
}

func TestStoreSweep(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s, clock := newTestStore(24*time.Hour, start)

	s.Put(&Case{MemberID: 1, Refs: []MessageRef{{ChatID: 1, MessageID: 1}}})

	// Спустя 12 часов появляется второе расхождение
	*clock = start.Add(12 * time.Hour)
	s.Put(&Case{MemberID: 2, Refs: []MessageRef{{ChatID: 2, MessageID: 2}, {ChatID: 3, MessageID: 3}}})

	// До истечения ретеншена метла ничего не трогает
	assert.Zero(t, s.Sweep())
	assert.Equal(t, 2, s.Open())

	// Через 25 часов от старта истекло только первое
	*clock = start.Add(25 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Open())

	_, ok := s.Take(MessageRef{ChatID: 1, MessageID: 1})
	assert.False(t, ok, "истекшее расхождение уже не разбирается")
	_, ok = s.Take(MessageRef{ChatID: 2, MessageID: 2})
	assert.True(t, ok)
}

func TestStoreConcurrentTake(t *testing.T) {
	s, _ := newTestStore(24*time.Hour, time.Now())

	refs := []MessageRef{
		{ChatID: 1, MessageID: 1},
		{ChatID: 2, MessageID: 2},
		{ChatID: 3, MessageID: 3},
	}
	s.Put(&Case{MemberID: 9, Refs: refs})

	var wg sync.WaitGroup
	wins := make(chan bool, len(refs)*4)
	for i := 0; i < len(refs)*4; i++ {
		ref := refs[i%len(refs)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := s.Take(ref)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "под гонкой побеждает ровно один ревьюер")
}
