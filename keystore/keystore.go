package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"votechain/keys"
)

// VoterRecord is the persisted profile of an issued key. Only the
// public key is stored; the private key is handed to the voter exactly
// once at registration.
type VoterRecord struct {
	VoterID   string `json:"voter_id"`
	PublicKey string `json:"public_key"`
	IssuedAt  int64  `json:"issued_at"`
}

// IssuedCredentials is the one-time registration response.
type IssuedCredentials struct {
	VoterID    string `json:"voter_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

type Config struct {
	VotersFilePath string `json:"voters_file_path"`
	AutoSave       bool   `json:"auto_save"`
}

// Store is the JSON-file-backed voter profile store the submission
// layer sources pre-registered keys from.
type Store struct {
	voters map[string]*VoterRecord
	keys   *keys.Service
	mu     sync.RWMutex
	config Config
}

func New(config Config, keySvc *keys.Service) (*Store, error) {
	store := &Store{
		voters: make(map[string]*VoterRecord),
		keys:   keySvc,
		config: config,
	}

	dir := filepath.Dir(config.VotersFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}

	if err := store.loadFromFile(); err != nil {
		return nil, err
	}

	return store, nil
}

// Register generates a key pair for a new voter, persists the public
// half and returns the full credentials to the caller.
func (st *Store) Register() (*IssuedCredentials, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	privateKey, err := st.keys.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate voter key pair: %w", err)
	}

	record := &VoterRecord{
		VoterID:   uuid.New().String(),
		PublicKey: st.keys.EncodePublicKey(&privateKey.PublicKey),
		IssuedAt:  time.Now().Unix(),
	}
	st.voters[record.VoterID] = record

	if st.config.AutoSave {
		if err := st.saveToFile(); err != nil {
			delete(st.voters, record.VoterID)
			return nil, err
		}
	}

	return &IssuedCredentials{
		VoterID:    record.VoterID,
		PublicKey:  record.PublicKey,
		PrivateKey: st.keys.EncodePrivateKey(privateKey),
	}, nil
}

// Lookup returns the stored record for a voter id.
func (st *Store) Lookup(voterID string) (*VoterRecord, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	record, ok := st.voters[voterID]
	return record, ok
}

// HasKey reports whether the public key was issued by this store.
func (st *Store) HasKey(publicKey string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	normalized := st.keys.NormalizePublicKey(publicKey)
	for _, record := range st.voters {
		if record.PublicKey == normalized {
			return true
		}
	}
	return false
}

func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.voters)
}

func (st *Store) loadFromFile() error {
	data, err := os.ReadFile(st.config.VotersFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read voters file: %v", err)
	}

	var votersData struct {
		Voters []*VoterRecord `json:"voters"`
	}
	if err := json.Unmarshal(data, &votersData); err != nil {
		return fmt.Errorf("failed to unmarshal voter data: %v", err)
	}

	st.voters = make(map[string]*VoterRecord)
	for _, voter := range votersData.Voters {
		st.voters[voter.VoterID] = voter
	}

	return nil
}

func (st *Store) saveToFile() error {
	votersData := struct {
		Voters []*VoterRecord `json:"voters"`
	}{Voters: make([]*VoterRecord, 0, len(st.voters))}

	for _, voter := range st.voters {
		votersData.Voters = append(votersData.Voters, voter)
	}

	data, err := json.MarshalIndent(votersData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal voter data: %v", err)
	}

	if err := os.WriteFile(st.config.VotersFilePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write voters file: %v", err)
	}

	return nil
}
