package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"votechain/models"
)

// ChainArchive persists per-election chain snapshots as JSON files.
// The ledger itself is memory-only; the archive is how the surrounding
// application keeps an auditable copy of what was sealed.
type ChainArchive struct {
	basePath string
	mu       sync.RWMutex
}

type chainFile struct {
	ElectionID int64           `json:"election_id"`
	Blocks     []*models.Block `json:"blocks"`
}

func NewChainArchive(basePath string) (*ChainArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}

	return &ChainArchive{basePath: basePath}, nil
}

// SaveChain writes the full chain snapshot for an election, replacing
// any previous snapshot atomically.
func (a *ChainArchive) SaveChain(electionID int64, blocks []*models.Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.MarshalIndent(chainFile{ElectionID: electionID, Blocks: blocks}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %v", err)
	}

	path := a.chainPath(electionID)

	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write chain file: %v", err)
	}

	// Atomic rename to ensure consistency
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save chain file: %v", err)
	}

	return nil
}

// LoadChain reads the archived chain for an election. A missing archive
// is returned as an empty chain.
func (a *ChainArchive) LoadChain(electionID int64) ([]*models.Block, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := os.ReadFile(a.chainPath(electionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Block{}, nil
		}
		return nil, err
	}

	var file chainFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain: %v", err)
	}

	return file.Blocks, nil
}

// Elections lists every election id with an archived chain, ascending.
func (a *ChainArchive) Elections() ([]int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "election_") || !strings.HasSuffix(name, "_chain.json") {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, "election_"), "_chain.json")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (a *ChainArchive) chainPath(electionID int64) string {
	return filepath.Join(a.basePath, fmt.Sprintf("election_%d_chain.json", electionID))
}
