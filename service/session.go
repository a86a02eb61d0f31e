package service

import (
	"sync"
	"time"
)

// ElectionSession is the voting-window gate applied by the request
// layer. The ledger itself has no closed state; a sealed chain simply
// stops receiving submissions once the session ends.
type ElectionSession struct {
	startTime time.Time
	endTime   time.Time
	isOpen    bool
	mu        sync.RWMutex
}

func NewElectionSession(duration time.Duration) *ElectionSession {
	now := time.Now()
	return &ElectionSession{
		startTime: now,
		endTime:   now.Add(duration),
		isOpen:    true,
	}
}

func (es *ElectionSession) IsOpen() bool {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.isOpen && time.Now().Before(es.endTime)
}

func (es *ElectionSession) Close() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.isOpen = false
}

func (es *ElectionSession) Remaining() time.Duration {
	es.mu.RLock()
	defer es.mu.RUnlock()

	if !es.isOpen {
		return 0
	}
	remaining := time.Until(es.endTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}
