package selection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source yields uniform integers in [0, n). Implementations must be safe for
// concurrent use when shared between sessions.
type Source interface {
	IntN(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// NewSource returns a goroutine-safe PCG source. seed 0 seeds from the clock.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Permute shuffles the first n positions in place with Fisher–Yates; every
// ordering is equally likely given a uniform source.
func Permute(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		swap(i, j)
	}
}
