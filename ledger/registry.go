package ledger

import (
	"log"
	"sort"
	"sync"

	"votechain/keys"
)

// Registry maps election ids to their single ledger instance. Ledgers
// are created lazily on first access and kept for the process lifetime.
// Creation happens under the registry lock so concurrent first access
// cannot produce two ledgers for one election.
type Registry struct {
	mu      sync.Mutex
	ledgers map[int64]*Ledger
	keys    *keys.Service
}

func NewRegistry(keySvc *keys.Service) *Registry {
	return &Registry{
		ledgers: make(map[int64]*Ledger),
		keys:    keySvc,
	}
}

// Get returns the ledger for electionID, creating it if needed.
func (r *Registry) Get(electionID int64) *Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.ledgers[electionID]; ok {
		return l
	}

	l := New(electionID, r.keys)
	r.ledgers[electionID] = l
	log.Printf("Created ledger for election %d", electionID)
	return l
}

// Lookup returns the ledger for electionID without creating one.
func (r *Registry) Lookup(electionID int64) (*Ledger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.ledgers[electionID]
	return l, ok
}

// Elections lists every election id a ledger exists for, ascending.
func (r *Registry) Elections() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.ledgers))
	for id := range r.ledgers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
