package arbitrage

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// IDGenerator produces opportunity ids unique within the owning process.
// Scoped per engine instance (an injected generator, not a package-global),
// so concurrent engines in the same process never collide and tests can
// supply a deterministic stand-in.
type IDGenerator interface {
	NextID(prefix string) string
}

// defaultIDGenerator formats ids as "<prefix>_<epoch_ms>_<4-digit-random>",
// e.g. "ARB_1733184000123_0472". A per-generator mutex-guarded rand.Rand
// keeps concurrent callers from racing the shared global source.
type defaultIDGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewIDGenerator returns a process-unique id generator seeded from the
// current time.
func NewIDGenerator() IDGenerator {
	return &defaultIDGenerator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *defaultIDGenerator) NextID(prefix string) string {
	g.mu.Lock()
	n := g.rnd.Intn(10000)
	g.mu.Unlock()
	return fmt.Sprintf("%s_%d_%04d", prefix, time.Now().UnixNano()/int64(time.Millisecond), n)
}
