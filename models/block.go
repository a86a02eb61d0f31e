package models

import (
	"encoding/hex"
	"encoding/json"
	"log"

	"golang.org/x/crypto/sha3"
)

// GenesisPrevHash is the fixed previous-hash of every chain's first block.
const GenesisPrevHash = "0"

type Block struct {
	Index        uint64             `json:"index"`
	Transactions []*VoteTransaction `json:"transactions"`
	PrevHash     string             `json:"prev_hash"`
	Hash         string             `json:"hash"`
	SealedAt     int64              `json:"sealed_at"`
	Nonce        uint64             `json:"nonce"`
}

// Helper struct for hash calculation
type blockForHash struct {
	Index        uint64             `json:"index"`
	Transactions []*VoteTransaction `json:"transactions"`
	PrevHash     string             `json:"prev_hash"`
	SealedAt     int64              `json:"sealed_at"`
	Nonce        uint64             `json:"nonce"`
}

// NewBlock seals the given transactions into a block linked to prevHash.
// The hash is computed exactly once; the block must not be modified after.
func NewBlock(index uint64, transactions []*VoteTransaction, prevHash string, sealedAt int64) *Block {
	block := &Block{
		Index:        index,
		Transactions: transactions,
		PrevHash:     prevHash,
		SealedAt:     sealedAt,
		Nonce:        0,
	}
	block.Hash = block.ComputeHash()
	return block
}

// NewGenesisBlock creates the empty block every chain starts with.
func NewGenesisBlock(sealedAt int64) *Block {
	return NewBlock(0, []*VoteTransaction{}, GenesisPrevHash, sealedAt)
}

// ComputeHash recomputes the block hash from the stored fields. The hash
// field itself is excluded from the input.
func (b *Block) ComputeHash() string {
	hashBlock := blockForHash{
		Index:        b.Index,
		Transactions: b.Transactions,
		PrevHash:     b.PrevHash,
		SealedAt:     b.SealedAt,
		Nonce:        b.Nonce,
	}

	data, err := json.Marshal(hashBlock)
	if err != nil {
		log.Printf("Warning: Failed to marshal block for hashing: %v", err)
		return ""
	}

	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

// Validate reports whether the stored hash matches a fresh recomputation.
func (b *Block) Validate() bool {
	return b.Hash != "" && b.ComputeHash() == b.Hash
}

// ValidateChain validates the entire chain: every block's own hash and
// its link to the predecessor.
func ValidateChain(blocks []*Block) bool {
	if len(blocks) == 0 {
		return true
	}

	if !blocks[0].Validate() {
		log.Printf("Chain validation: genesis block invalid")
		return false
	}
	if blocks[0].PrevHash != GenesisPrevHash {
		log.Printf("Chain validation: genesis block has unexpected previous hash")
		return false
	}

	for i := 1; i < len(blocks); i++ {
		currentBlock := blocks[i]
		previousBlock := blocks[i-1]

		if !currentBlock.Validate() {
			log.Printf("Chain validation: block %d has invalid hash", i)
			return false
		}

		if currentBlock.PrevHash != previousBlock.Hash {
			log.Printf("Chain validation: block %d has invalid previous hash link", i)
			return false
		}

		if currentBlock.Index != previousBlock.Index+1 {
			log.Printf("Chain validation: block %d has invalid index", i)
			return false
		}

		// Forced sealing can produce two blocks within the same second.
		if currentBlock.SealedAt < previousBlock.SealedAt {
			log.Printf("Chain validation: block %d has invalid timestamp", i)
			return false
		}
	}

	return true
}
