package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"votechain/keys"
	"votechain/keystore"
	"votechain/ledger"
	"votechain/models"
	"votechain/service"
	"votechain/storage"
)

type Config struct {
	DataDir            string
	SessionDuration    time.Duration
	QueueSize          int
	AllowGeneratedKeys bool
	Port               int
}

type PrepareVoteRequest struct {
	ElectionID  int64  `json:"election_id"`
	CandidateID int64  `json:"candidate_id"`
	PublicKey   string `json:"public_key"`
}

type ChainResponse struct {
	ElectionID int64           `json:"election_id"`
	BlockCount int             `json:"block_count"`
	Blocks     []*models.Block `json:"blocks"`
	IsValid    bool            `json:"is_valid"`
	LastHash   string          `json:"last_hash"`
}

type StatusResponse struct {
	RegisteredVoters int                     `json:"registered_voters"`
	Elections        []int64                 `json:"elections"`
	VotingActive     bool                    `json:"voting_active"`
	Metrics          service.MetricsSnapshot `json:"metrics"`
}

type Server struct {
	submissions *service.SubmissionService
	queue       *service.SubmissionQueue
	tally       *service.TallyService
	session     *service.ElectionSession
	voters      *keystore.Store
	archive     *storage.ChainArchive
}

func main() {
	config := parseFlags()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		log.Fatalf("Failed to setup data directory: %v", err)
	}

	server, err := initializeServer(config)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	server.queue.Start()

	// Set up HTTP routes
	http.HandleFunc("/api/register", server.handleRegisterVoter)
	http.HandleFunc("/api/vote/prepare", server.handlePrepareVote)
	http.HandleFunc("/api/vote", server.handleCastVote)
	http.HandleFunc("/api/results", server.handleGetResults)
	http.HandleFunc("/api/status", server.handleGetStatus)
	http.HandleFunc("/api/end-session", server.handleEndSession)

	// Chain
	http.HandleFunc("/api/chain", server.handleGetChain)
	http.HandleFunc("/api/chain/validate", server.handleValidateChain)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %d...\n", config.Port)
		serverChan <- http.ListenAndServe(fmt.Sprintf(":%d", config.Port), nil)
	}()

	select {
	case err := <-serverChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v\n", sig)
		server.session.Close()
		server.queue.Stop()
		if err := server.archiveAll(); err != nil {
			log.Printf("Error archiving chains during shutdown: %v", err)
		}
		log.Println("Server shutdown completed")
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.DataDir, "data", "data", "Directory for chain archives and voter records")
	flag.DurationVar(&config.SessionDuration, "session", 24*time.Hour, "Voting session duration")
	flag.IntVar(&config.QueueSize, "queue", 64, "Submission queue size")
	flag.BoolVar(&config.AllowGeneratedKeys, "allow-generated-keys", true,
		"Generate a key pair and sign on the voter's behalf when no credentials are supplied")
	flag.IntVar(&config.Port, "port", 8080, "Server port")

	flag.Parse()
	return config
}

func initializeServer(config *Config) (*Server, error) {
	absPath, err := filepath.Abs(config.DataDir)
	if err != nil {
		return nil, err
	}

	keySvc := keys.NewService()
	registry := ledger.NewRegistry(keySvc)

	voters, err := keystore.New(keystore.Config{
		VotersFilePath: filepath.Join(absPath, "voters.json"),
		AutoSave:       true,
	}, keySvc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize voter keystore: %v", err)
	}

	archive, err := storage.NewChainArchive(filepath.Join(absPath, "chains"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain archive: %v", err)
	}

	submissions := service.NewSubmissionService(registry, keySvc, service.SubmissionConfig{
		AllowGeneratedKeys: config.AllowGeneratedKeys,
	})

	return &Server{
		submissions: submissions,
		queue:       service.NewSubmissionQueue(submissions, config.QueueSize),
		tally:       service.NewTallyService(keySvc),
		session:     service.NewElectionSession(config.SessionDuration),
		voters:      voters,
		archive:     archive,
	}, nil
}

func (s *Server) handleRegisterVoter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.session.IsOpen() {
		http.Error(w, "Voting session has ended", http.StatusForbidden)
		return
	}

	credentials, err := s.voters.Register()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(credentials)
}

func (s *Server) handlePrepareVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.session.IsOpen() {
		http.Error(w, "Voting session has ended", http.StatusForbidden)
		return
	}

	var req PrepareVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	prepared, err := s.submissions.Prepare(req.ElectionID, req.CandidateID, req.PublicKey)
	if err != nil {
		http.Error(w, err.Error(), rejectionStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prepared)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.session.IsOpen() {
		http.Error(w, "Voting session has ended", http.StatusForbidden)
		return
	}

	var req service.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := <-s.queue.Enqueue(req)
	if result.Err != nil {
		http.Error(w, result.Err.Error(), rejectionStatus(result.Err))
		return
	}

	// Keep the archived snapshot in step with the in-memory chain.
	led := s.submissions.Registry().Get(req.ElectionID)
	if err := s.archive.SaveChain(req.ElectionID, led.Chain()); err != nil {
		log.Printf("Warning: failed to archive chain for election %d: %v", req.ElectionID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result.Receipt)
}

// rejectionStatus maps expected validation rejections to 4xx and
// structural failures to 500.
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrDuplicateVoter),
		errors.Is(err, ledger.ErrDuplicateVoteID):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidSignature),
		errors.Is(err, ledger.ErrInvalidPublicKey),
		errors.Is(err, service.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrQueueFull),
		errors.Is(err, service.ErrQueueStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionID, err := electionParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	led, ok := s.submissions.Registry().Lookup(electionID)
	if !ok {
		http.Error(w, "Unknown election", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.tally.CountVotes(led))
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionID, err := electionParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	led, ok := s.submissions.Registry().Lookup(electionID)
	if !ok {
		http.Error(w, "Unknown election", http.StatusNotFound)
		return
	}

	blocks := led.Chain()
	response := ChainResponse{
		ElectionID: electionID,
		BlockCount: len(blocks),
		Blocks:     blocks,
		IsValid:    led.Validate(),
		LastHash:   blocks[len(blocks)-1].Hash,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleValidateChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionID, err := electionParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	led, ok := s.submissions.Registry().Lookup(electionID)
	if !ok {
		http.Error(w, "Unknown election", http.StatusNotFound)
		return
	}

	response := struct {
		ElectionID int64 `json:"election_id"`
		IsValid    bool  `json:"is_valid"`
		Height     int   `json:"height"`
	}{
		ElectionID: electionID,
		IsValid:    led.Validate(),
		Height:     led.Height(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatusResponse{
		RegisteredVoters: s.voters.Count(),
		Elections:        s.submissions.Registry().Elections(),
		VotingActive:     s.session.IsOpen(),
		Metrics:          s.submissions.Metrics().Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.session.Close()
	if err := s.archiveAll(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (s *Server) archiveAll() error {
	for _, electionID := range s.submissions.Registry().Elections() {
		led, ok := s.submissions.Registry().Lookup(electionID)
		if !ok {
			continue
		}
		if err := s.archive.SaveChain(electionID, led.Chain()); err != nil {
			return fmt.Errorf("failed to archive election %d: %w", electionID, err)
		}
	}
	return nil
}

func electionParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("election")
	if raw == "" {
		return 0, errors.New("missing election id")
	}

	electionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid election id: %v", err)
	}
	return electionID, nil
}
