package service

import (
	"sync"

	"votechain/keys"
	"votechain/ledger"
)

// TallyService counts the votes sealed into a ledger's chain. Votes
// whose signature no longer verifies against their stored fields are
// skipped and reported, since a failed re-verification on a sealed
// transaction is tamper evidence.
type TallyService struct {
	keys   *keys.Service
	mu     sync.RWMutex
	latest map[int64]*TallyResult
}

// TallyResult represents the vote count for one election.
type TallyResult struct {
	ElectionID   int64         `json:"election_id"`
	TotalVotes   int           `json:"total_votes"`
	Results      map[int64]int `json:"results"`
	SkippedVotes int           `json:"skipped_votes"`
	ChainValid   bool          `json:"chain_valid"`
}

func NewTallyService(keySvc *keys.Service) *TallyService {
	return &TallyService{
		keys:   keySvc,
		latest: make(map[int64]*TallyResult),
	}
}

// CountVotes walks every sealed block of the ledger and tallies votes
// per candidate. Each vote id is counted at most once.
func (ts *TallyService) CountVotes(led *ledger.Ledger) *TallyResult {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	result := &TallyResult{
		ElectionID: led.ElectionID(),
		Results:    make(map[int64]int),
		ChainValid: led.Validate(),
	}

	counted := make(map[string]bool)
	for _, block := range led.Chain() {
		for _, tx := range block.Transactions {
			// The ledger never seals a vote id twice, so a repeat here
			// is tamper evidence, same as a broken signature.
			if counted[tx.VoteID] {
				result.SkippedVotes++
				continue
			}
			counted[tx.VoteID] = true

			payload := ts.keys.CanonicalPayload(tx.VoteID, tx.ElectionID, tx.CandidateID, tx.VoterPublicKey, tx.Timestamp)
			if !ts.keys.Verify(payload, tx.Signature, tx.VoterPublicKey) {
				result.SkippedVotes++
				continue
			}

			result.Results[tx.CandidateID]++
			result.TotalVotes++
		}
	}

	ts.latest[result.ElectionID] = result
	return result
}

// LatestResults returns the most recent tally for an election, if any.
func (ts *TallyService) LatestResults(electionID int64) (*TallyResult, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	result, ok := ts.latest[electionID]
	return result, ok
}
