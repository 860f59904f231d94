package detection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandSource is the randomness the generator and reconciler draw from.
type RandSource interface {
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewSeededRand returns a deterministic source that is safe for concurrent
// use. A zero seed uses the current time instead.
func NewSeededRand(seed uint64) RandSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
