package models

// VoteTransaction is a single signed vote. The signature covers the
// canonical payload of all other fields (see keys.CanonicalPayload);
// a transaction is never mutated after construction.
type VoteTransaction struct {
	VoteID         string `json:"vote_id"`
	ElectionID     int64  `json:"election_id"`
	CandidateID    int64  `json:"candidate_id"`
	VoterPublicKey string `json:"voter_public_key"`
	Timestamp      int64  `json:"timestamp"`
	Signature      string `json:"signature"`
}

func NewVoteTransaction(voteID string, electionID, candidateID int64, voterPublicKey string, timestamp int64, signature string) *VoteTransaction {
	return &VoteTransaction{
		VoteID:         voteID,
		ElectionID:     electionID,
		CandidateID:    candidateID,
		VoterPublicKey: voterPublicKey,
		Timestamp:      timestamp,
		Signature:      signature,
	}
}
