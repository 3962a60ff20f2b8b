package mint

import (
	"sync"

	"github.com/google/uuid"
)

// AttemptIDGenerator produces correlation ids for mint attempts.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type AttemptIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 attempt ids, so log lines
// from consecutive attempts sort by start time.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined attempt ids for testing.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order. Once the
// list is exhausted the last id is repeated.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"attempt-default"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
