package service

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"votechain/keys"
	"votechain/ledger"
	"votechain/models"
)

var (
	// ErrSealingFailed means a transaction was accepted but no block was
	// produced. That breaks a core invariant and aborts the submission.
	ErrSealingFailed = errors.New("no pending transaction was sealed")

	// ErrMissingCredentials is returned in strict mode when the caller
	// supplies no public key or signature.
	ErrMissingCredentials = errors.New("voter public key and signature required")
)

// SubmissionConfig controls the one deliberate trust trade-off in the
// system: whether a vote without credentials gets a generated key pair
// and a signature produced on the voter's behalf. Auto-signing keeps
// the "never store an unsigned vote" bookkeeping property but the voter
// cannot later prove, or repudiate, authorship. Strict deployments set
// AllowGeneratedKeys to false and reject such submissions outright.
type SubmissionConfig struct {
	AllowGeneratedKeys bool
}

// SubmissionRequest is one vote entering the facade. A voter signing
// with their own key first calls Prepare, signs the returned payload,
// and sends the prepared fields back together with the signature. A
// request without credentials takes the generated-key fallback path.
type SubmissionRequest struct {
	ElectionID     int64  `json:"election_id"`
	CandidateID    int64  `json:"candidate_id"`
	VoteID         string `json:"vote_id,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
	VoterPublicKey string `json:"public_key,omitempty"`
	Signature      string `json:"signature,omitempty"`
}

// PreparedVote fixes the vote id and timestamp and carries the exact
// canonical payload the voter must sign. The signed and verified
// payloads are byte-identical because both derive from these fields.
type PreparedVote struct {
	VoteID         string `json:"vote_id"`
	ElectionID     int64  `json:"election_id"`
	CandidateID    int64  `json:"candidate_id"`
	VoterPublicKey string `json:"public_key"`
	Timestamp      int64  `json:"timestamp"`
	Payload        string `json:"payload"`
}

// Receipt is what the caller persists alongside its own vote record.
type Receipt struct {
	VoteID          string `json:"vote_id"`
	TransactionHash string `json:"transaction_hash"`
	BlockHash       string `json:"block_hash"`

	// Set only on the generated-key fallback path, so the voter at
	// least ends up holding the key that signed their vote.
	GeneratedPublicKey  string `json:"generated_public_key,omitempty"`
	GeneratedPrivateKey string `json:"generated_private_key,omitempty"`
}

// SubmissionService is the single entry point the request layer uses to
// turn an election, candidate and optional credentials into a sealed,
// hash-chained vote.
type SubmissionService struct {
	registry *ledger.Registry
	keys     *keys.Service
	metrics  *MetricsCollector
	config   SubmissionConfig
}

func NewSubmissionService(registry *ledger.Registry, keySvc *keys.Service, config SubmissionConfig) *SubmissionService {
	return &SubmissionService{
		registry: registry,
		keys:     keySvc,
		metrics:  NewMetricsCollector(),
		config:   config,
	}
}

func (s *SubmissionService) Metrics() *MetricsCollector {
	return s.metrics
}

func (s *SubmissionService) Registry() *ledger.Registry {
	return s.registry
}

// Prepare fixes a vote id and timestamp for a voter who signs with
// their own key, and returns the canonical payload to sign.
func (s *SubmissionService) Prepare(electionID, candidateID int64, voterPublicKey string) (*PreparedVote, error) {
	if !s.keys.IsValidPublicKey(voterPublicKey) {
		return nil, ledger.ErrInvalidPublicKey
	}

	voteID := uuid.New().String()
	timestamp := time.Now().Unix()
	voterPublicKey = s.keys.NormalizePublicKey(voterPublicKey)

	payload := s.keys.CanonicalPayload(voteID, electionID, candidateID, voterPublicKey, timestamp)
	return &PreparedVote{
		VoteID:         voteID,
		ElectionID:     electionID,
		CandidateID:    candidateID,
		VoterPublicKey: voterPublicKey,
		Timestamp:      timestamp,
		Payload:        string(payload),
	}, nil
}

// Submit validates, accepts and immediately seals one vote. Every
// accepted vote gets its own single-transaction block so the caller has
// a block hash before this returns; batching would need to block here
// until the batch containing this vote seals.
func (s *SubmissionService) Submit(req SubmissionRequest) (*Receipt, error) {
	start := time.Now()

	led := s.registry.Get(req.ElectionID)

	var (
		tx      *models.VoteTransaction
		receipt *Receipt
		err     error
	)
	if req.VoterPublicKey == "" || req.Signature == "" {
		tx, receipt, err = s.buildGeneratedVote(req.ElectionID, req.CandidateID)
	} else {
		tx, receipt, err = s.buildSignedVote(req)
	}
	if err != nil {
		s.metrics.RecordRejection()
		return nil, err
	}

	payload := s.keys.CanonicalPayload(tx.VoteID, tx.ElectionID, tx.CandidateID, tx.VoterPublicKey, tx.Timestamp)
	receipt.TransactionHash = s.keys.TransactionHash(payload, tx.Signature)

	if err := led.SubmitTransaction(tx); err != nil {
		s.metrics.RecordRejection()
		return nil, err
	}

	block, sealed := led.SealPending()
	if !sealed {
		// The transaction above was accepted, so an empty pool here
		// means a logic error upstream, not a bad vote.
		s.metrics.RecordRejection()
		return nil, errors.Wrapf(ErrSealingFailed, "election %d vote %s", req.ElectionID, tx.VoteID)
	}
	receipt.BlockHash = block.Hash

	s.metrics.RecordSubmission(time.Since(start))
	return receipt, nil
}

// buildSignedVote reconstructs the transaction from a prepared request.
// The payload is recomputed from the request fields, never trusted from
// the wire, so a tampered field simply fails signature verification.
func (s *SubmissionService) buildSignedVote(req SubmissionRequest) (*models.VoteTransaction, *Receipt, error) {
	if req.VoteID == "" || req.Timestamp == 0 {
		return nil, nil, errors.Wrap(ErrMissingCredentials, "vote was not prepared")
	}

	tx := models.NewVoteTransaction(
		req.VoteID,
		req.ElectionID,
		req.CandidateID,
		s.keys.NormalizePublicKey(req.VoterPublicKey),
		req.Timestamp,
		req.Signature,
	)
	return tx, &Receipt{VoteID: tx.VoteID}, nil
}

// buildGeneratedVote is the fallback for voters without registered
// keys: generate a pair, sign on their behalf, hand the key back in
// the receipt.
func (s *SubmissionService) buildGeneratedVote(electionID, candidateID int64) (*models.VoteTransaction, *Receipt, error) {
	if !s.config.AllowGeneratedKeys {
		return nil, nil, ErrMissingCredentials
	}

	privateKey, err := s.keys.GenerateKeyPair()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate fallback key pair")
	}
	voterPublicKey := s.keys.EncodePublicKey(&privateKey.PublicKey)

	voteID := uuid.New().String()
	// One timestamp, fixed here and reused for both signing and
	// storage. A second reading would change the signed payload.
	timestamp := time.Now().Unix()

	payload := s.keys.CanonicalPayload(voteID, electionID, candidateID, voterPublicKey, timestamp)
	signature, err := s.keys.Sign(payload, privateKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to sign on voter's behalf")
	}

	log.Printf("Vote %s in election %d submitted without credentials, auto-signed with a generated key",
		voteID, electionID)

	tx := models.NewVoteTransaction(voteID, electionID, candidateID, voterPublicKey, timestamp, signature)
	receipt := &Receipt{
		VoteID:              voteID,
		GeneratedPublicKey:  voterPublicKey,
		GeneratedPrivateKey: s.keys.EncodePrivateKey(privateKey),
	}
	return tx, receipt, nil
}
