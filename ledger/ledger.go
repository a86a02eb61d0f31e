package ledger

import (
	"errors"
	"log"
	"sync"
	"time"

	"votechain/keys"
	"votechain/models"
)

// Validation rejections are expected outcomes, not failures. Callers
// match them with errors.Is and map them to user-facing messages.
var (
	ErrDuplicateVoter   = errors.New("voter has already voted in this election")
	ErrDuplicateVoteID  = errors.New("vote id already used in this election")
	ErrInvalidPublicKey = errors.New("malformed voter public key")
	ErrInvalidSignature = errors.New("signature does not match transaction payload")
	ErrWrongElection    = errors.New("transaction does not belong to this election")
)

// Ledger is the per-election append-only chain of sealed blocks plus a
// pool of validated transactions awaiting sealing. A ledger exclusively
// owns its chain and pool; all access goes through its mutex.
type Ledger struct {
	electionID   int64
	mu           sync.RWMutex
	chain        []*models.Block
	pending      map[string]*models.VoteTransaction
	pendingOrder []string
	votedKeys    map[string]bool
	usedVoteIDs  map[string]bool
	keys         *keys.Service
}

// New creates a ledger for the given election. The genesis block is
// sealed synchronously so the chain is never empty.
func New(electionID int64, keySvc *keys.Service) *Ledger {
	genesis := models.NewGenesisBlock(time.Now().Unix())

	return &Ledger{
		electionID:  electionID,
		chain:       []*models.Block{genesis},
		pending:     make(map[string]*models.VoteTransaction),
		votedKeys:   make(map[string]bool),
		usedVoteIDs: make(map[string]bool),
		keys:        keySvc,
	}
}

func (l *Ledger) ElectionID() int64 {
	return l.electionID
}

// SubmitTransaction validates tx and moves it into the pending pool.
// The double-vote check and the insertion happen under the same lock
// hold, so two submissions for one voter can never both pass. A
// rejected transaction leaves the ledger completely unchanged.
func (l *Ledger) SubmitTransaction(tx *models.VoteTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ElectionID != l.electionID {
		return ErrWrongElection
	}

	voterKey := l.keys.NormalizePublicKey(tx.VoterPublicKey)
	if l.votedKeys[voterKey] {
		log.Printf("Rejecting vote %s: voter already voted in election %d", tx.VoteID, l.electionID)
		return ErrDuplicateVoter
	}

	// Vote ids identify a vote for the chain's lifetime; the tally
	// counts each id once, so a reused id could never be counted.
	if l.usedVoteIDs[tx.VoteID] {
		log.Printf("Rejecting vote %s: vote id already used in election %d", tx.VoteID, l.electionID)
		return ErrDuplicateVoteID
	}

	if !l.keys.IsValidPublicKey(tx.VoterPublicKey) {
		return ErrInvalidPublicKey
	}

	payload := l.keys.CanonicalPayload(tx.VoteID, tx.ElectionID, tx.CandidateID, tx.VoterPublicKey, tx.Timestamp)
	if !l.keys.Verify(payload, tx.Signature, tx.VoterPublicKey) {
		log.Printf("Rejecting vote %s: signature verification failed", tx.VoteID)
		return ErrInvalidSignature
	}

	l.pending[tx.VoteID] = tx
	l.pendingOrder = append(l.pendingOrder, tx.VoteID)
	l.votedKeys[voterKey] = true
	l.usedVoteIDs[tx.VoteID] = true
	return nil
}

// SealPending seals every pending transaction, in insertion order, into
// a new block appended to the chain. With an empty pool sealing is a
// no-op: the current tail is returned and the second value is false.
func (l *Ledger) SealPending() (*models.Block, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lastBlock := l.chain[len(l.chain)-1]
	if len(l.pendingOrder) == 0 {
		return lastBlock, false
	}

	transactions := make([]*models.VoteTransaction, 0, len(l.pendingOrder))
	for _, voteID := range l.pendingOrder {
		transactions = append(transactions, l.pending[voteID])
	}

	sealedAt := time.Now().Unix()
	if sealedAt < lastBlock.SealedAt {
		sealedAt = lastBlock.SealedAt
	}

	block := models.NewBlock(lastBlock.Index+1, transactions, lastBlock.Hash, sealedAt)
	l.chain = append(l.chain, block)
	l.pending = make(map[string]*models.VoteTransaction)
	l.pendingOrder = nil

	log.Printf("Sealed block %d with %d transaction(s) for election %d",
		block.Index, len(block.Transactions), l.electionID)
	return block, true
}

// Chain returns a copy of the sealed blocks to prevent modification.
func (l *Ledger) Chain() []*models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blocks := make([]*models.Block, len(l.chain))
	copy(blocks, l.chain)
	return blocks
}

// LastBlock returns the current chain tail.
func (l *Ledger) LastBlock() *models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

// Height is the number of sealed blocks, genesis included.
func (l *Ledger) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pendingOrder)
}

// HasVoted reports whether the voter key has a pending or sealed vote.
func (l *Ledger) HasVoted(voterPublicKey string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.votedKeys[l.keys.NormalizePublicKey(voterPublicKey)]
}

// Validate re-checks every block hash and chain link.
func (l *Ledger) Validate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return models.ValidateChain(l.chain)
}
