package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain/ledger"
)

func TestQueueDeliversReceipt(t *testing.T) {
	svc, _ := newTestService(true)
	queue := NewSubmissionQueue(svc, 8)
	queue.Start()
	defer queue.Stop()

	result := <-queue.Enqueue(SubmissionRequest{ElectionID: 42, CandidateID: 7})
	require.NoError(t, result.Err)
	require.NotNil(t, result.Receipt)
	assert.NotEmpty(t, result.Receipt.BlockHash)
	assert.Equal(t, result.Receipt.BlockHash, svc.Registry().Get(42).LastBlock().Hash)
}

func TestQueueFullFailsFast(t *testing.T) {
	svc, _ := newTestService(true)
	// Worker never started, zero capacity: every enqueue is rejected.
	queue := NewSubmissionQueue(svc, 0)

	result := <-queue.Enqueue(SubmissionRequest{ElectionID: 42, CandidateID: 7})
	assert.ErrorIs(t, result.Err, ErrQueueFull)
	assert.Nil(t, result.Receipt)
}

func TestStopFailsQueuedRequests(t *testing.T) {
	svc, _ := newTestService(true)
	// Worker never started: requests stay queued until Stop.
	queue := NewSubmissionQueue(svc, 4)

	firstCh := queue.Enqueue(SubmissionRequest{ElectionID: 42, CandidateID: 7})
	secondCh := queue.Enqueue(SubmissionRequest{ElectionID: 42, CandidateID: 9})
	queue.Stop()

	first, second := <-firstCh, <-secondCh
	assert.ErrorIs(t, first.Err, ErrQueueStopped)
	assert.ErrorIs(t, second.Err, ErrQueueStopped)

	// Enqueueing after Stop fails immediately instead of blocking.
	result := <-queue.Enqueue(SubmissionRequest{ElectionID: 42, CandidateID: 7})
	assert.ErrorIs(t, result.Err, ErrQueueStopped)
}

func TestQueueSerializesDuplicateVoters(t *testing.T) {
	svc, keySvc := newTestService(false)
	queue := NewSubmissionQueue(svc, 8)
	queue.Start()
	defer queue.Stop()

	priv, err := keySvc.GenerateKeyPair()
	require.NoError(t, err)
	pub := keySvc.EncodePublicKey(&priv.PublicKey)

	prepare := func(candidateID int64) SubmissionRequest {
		prepared, err := svc.Prepare(42, candidateID, pub)
		require.NoError(t, err)
		signature, err := keySvc.Sign([]byte(prepared.Payload), priv)
		require.NoError(t, err)
		return SubmissionRequest{
			ElectionID:     42,
			CandidateID:    candidateID,
			VoteID:         prepared.VoteID,
			Timestamp:      prepared.Timestamp,
			VoterPublicKey: pub,
			Signature:      signature,
		}
	}

	firstCh := queue.Enqueue(prepare(7))
	secondCh := queue.Enqueue(prepare(9))

	first, second := <-firstCh, <-secondCh
	require.NoError(t, first.Err, "queue processes in submission order")
	assert.ErrorIs(t, second.Err, ledger.ErrDuplicateVoter)
	assert.Equal(t, 2, svc.Registry().Get(42).Height())
}
