package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates ids of the form "<prefix>-0001", "<prefix>-0002", ...
//
// Unlike docstore.FixedGenerator it never runs out, which suits scenario
// runs where the number of generated ids is not known up front. The same
// scenario with a fresh SequenceIDs produces byte-identical documents.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
