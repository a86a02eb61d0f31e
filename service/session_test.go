package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionOpenAndClose(t *testing.T) {
	session := NewElectionSession(time.Hour)

	assert.True(t, session.IsOpen())
	assert.Greater(t, session.Remaining(), time.Duration(0))

	session.Close()
	assert.False(t, session.IsOpen())
	assert.Equal(t, time.Duration(0), session.Remaining())
}

func TestSessionExpires(t *testing.T) {
	session := NewElectionSession(-time.Second)
	assert.False(t, session.IsOpen())
	assert.Equal(t, time.Duration(0), session.Remaining())
}
