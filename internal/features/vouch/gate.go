// Package vouch — gate.go ограничивает шквал попыток поручиться.
// Это НЕ кулдаун: кулдаун в базе ограничивает выданные поручительства
// раз в 24 часа, а гейт — быстрые повторы в коротком окне, и живёт
// только в памяти процесса.
package vouch

import (
	"sync"
	"time"
)

// Gate — счётчик попыток «в полёте» на каждого актора.
// Попытка, прошедшая гейт, увеличивает счётчик и планирует списание
// через decay. Отклонённая попытка счётчик НЕ трогает, поэтому потолок —
// это ровно limit одновременных попыток, а не «limit за окно».
type Gate struct {
	mu     sync.Mutex
	counts map[int64]int
	limit  int
	decay  time.Duration
}

// NewGate создаёт гейт с потолком limit и задержкой списания decay.
func NewGate(limit int, decay time.Duration) *Gate {
	return &Gate{
		counts: make(map[int64]int),
		limit:  limit,
		decay:  decay,
	}
}

// Acquire регистрирует попытку актора. false — потолок достигнут,
// счётчик не изменён. true — попытка учтена, списание запланировано.
func (g *Gate) Acquire(actorID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.counts[actorID] >= g.limit {
		return false
	}
	g.counts[actorID]++

	// Списание и инкремент держат один мьютекс: отложенный декремент
	// не должен гоняться с одновременным Acquire того же актора.
	time.AfterFunc(g.decay, func() { g.release(actorID) })
	return true
}

// InFlight возвращает текущий счётчик актора (для логов и тестов).
func (g *Gate) InFlight(actorID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[actorID]
}

// release списывает одну попытку. На нуле запись удаляется из мапы,
// чтобы память не росла с числом когда-либо видевшихся акторов.
func (g *Gate) release(actorID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.counts[actorID] <= 1 {
		delete(g.counts, actorID)
		return
	}
	g.counts[actorID]--
}
