package vouch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Долгий decay, чтобы таймеры не срабатывали в тестах:
// списание дергаем руками через release.
const testDecay = time.Hour

func TestGateCeiling(t *testing.T) {
	g := NewGate(3, testDecay)

	assert.True(t, g.Acquire(1))
	assert.True(t, g.Acquire(1))
	assert.True(t, g.Acquire(1))
	assert.Equal(t, 3, g.InFlight(1))

	// Четвёртая попытка упирается в потолок и счётчик не трогает
	assert.False(t, g.Acquire(1))
	assert.Equal(t, 3, g.InFlight(1))

	// Потолок на актора, не глобальный
	assert.True(t, g.Acquire(2))
}

func TestGateRelease(t *testing.T) {
	g := NewGate(3, testDecay)

	for i := 0; i < 3; i++ {
		g.Acquire(1)
	}
	assert.False(t, g.Acquire(1))

	// Одно списание освобождает ровно один слот
	g.release(1)
	assert.Equal(t, 2, g.InFlight(1))
	assert.True(t, g.Acquire(1))
	assert.False(t, g.Acquire(1))
}

func TestGateReleaseToZeroDropsEntry(t *testing.T) {
	g := NewGate(3, testDecay)

	g.Acquire(1)
	g.release(1)

	g.mu.Lock()
	_, ok := g.counts[1]
	g.mu.Unlock()
	assert.False(t, ok, "нулевой счётчик должен удаляться из мапы")
	assert.Equal(t, 0, g.InFlight(1))
}

func TestGateConcurrentAcquire(t *testing.T) {
	g := NewGate(3, testDecay)

	var wg sync.WaitGroup
	granted := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted <- g.Acquire(42)
		}()
	}
	wg.Wait()
	close(granted)

	ok := 0
	for v := range granted {
		if v {
			ok++
		}
	}
	assert.Equal(t, 3, ok, "под гонкой проходит ровно limit попыток")
	assert.Equal(t, 3, g.InFlight(42))
}
