package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/schollz/progressbar/v3"

	"votechain/keys"
	"votechain/models"
	"votechain/storage"
)

// audit walks every archived election chain and re-verifies it offline:
// block hashes, previous-hash links and per-transaction signatures.

var bar *progressbar.ProgressBar

func fail(msg string) {
	fmt.Println()
	color.Printf("<error>ERROR</>\t%s\n", msg)
	os.Exit(1)
}

func auditChain(electionID int64, blocks []*models.Block, keySvc *keys.Service) error {
	if len(blocks) == 0 {
		return fmt.Errorf("election %d: empty archive", electionID)
	}

	if !models.ValidateChain(blocks) {
		return fmt.Errorf("election %d: chain validation failed", electionID)
	}

	seenVoters := make(map[string]bool)
	seenVotes := make(map[string]bool)
	for _, block := range blocks {
		for _, tx := range block.Transactions {
			payload := keySvc.CanonicalPayload(tx.VoteID, tx.ElectionID, tx.CandidateID, tx.VoterPublicKey, tx.Timestamp)
			if !keySvc.Verify(payload, tx.Signature, tx.VoterPublicKey) {
				return fmt.Errorf("election %d block %d: signature check failed for vote %s",
					electionID, block.Index, tx.VoteID)
			}
			if tx.ElectionID != electionID {
				return fmt.Errorf("election %d block %d: vote %s belongs to election %d",
					electionID, block.Index, tx.VoteID, tx.ElectionID)
			}

			voterKey := keySvc.NormalizePublicKey(tx.VoterPublicKey)
			if seenVoters[voterKey] {
				return fmt.Errorf("election %d block %d: duplicate voter key in sealed chain",
					electionID, block.Index)
			}
			seenVoters[voterKey] = true

			if seenVotes[tx.VoteID] {
				return fmt.Errorf("election %d block %d: duplicate vote id %s in sealed chain",
					electionID, block.Index, tx.VoteID)
			}
			seenVotes[tx.VoteID] = true
		}
		bar.Add(1)
	}

	return nil
}

func main() {
	color.Info.Println("votechain audit")
	fmt.Println("Offline verification of archived election chains")
	fmt.Println()

	fdir := flag.String("dir", "data/chains", "Directory with archived chains to audit")
	flag.Parse()

	archive, err := storage.NewChainArchive(*fdir)
	if err != nil {
		fail(err.Error())
	}

	elections, err := archive.Elections()
	if err != nil {
		fail(err.Error())
	}
	if len(elections) == 0 {
		fail(fmt.Sprintf("no archived chains found in %s", *fdir))
	}

	keySvc := keys.NewService()

	totalBlocks := 0
	chains := make(map[int64][]*models.Block, len(elections))
	for _, electionID := range elections {
		blocks, err := archive.LoadChain(electionID)
		if err != nil {
			fail(err.Error())
		}
		chains[electionID] = blocks
		totalBlocks += len(blocks)
	}

	color.Printf("Elections : <suc>%d</>\n", len(elections))
	color.Printf("Blocks    : <suc>%d</>\n\n", totalBlocks)
	bar = progressbar.Default(int64(totalBlocks))

	for _, electionID := range elections {
		if err := auditChain(electionID, chains[electionID], keySvc); err != nil {
			fail(err.Error())
		}
	}

	fmt.Println()
	color.Printf("<suc>OK</>\tall chains verified\n")
}
