package testutil

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// SeededUUIDs generates version 4 uuids from a seeded stream.
//
// Two generators with the same seed produce the same sequence, which keeps
// fixture files and golden snapshots byte-identical across runs.
//
// Thread-safety: NewUUID is safe for concurrent use.
type SeededUUIDs struct {
	mu   sync.Mutex
	seed uint64
	src  *rand.ChaCha8
}

// NewSeededUUIDs creates a generator for seed.
func NewSeededUUIDs(seed uint64) *SeededUUIDs {
	g := &SeededUUIDs{seed: seed}
	g.Reset()
	return g
}

// NewUUID returns the next uuid in the sequence.
func (g *SeededUUIDs) NewUUID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	// ChaCha8.Read never fails
	return uuid.Must(uuid.NewRandomFromReader(g.src))
}

// Reset restarts the sequence from the seed.
func (g *SeededUUIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], g.seed)
	g.src = rand.NewChaCha8(key)
}
