package megolm

import (
	"sync"
	"time"
)

// GroupSession tracks the rotation bookkeeping of one outbound group
// session. The actual ratchet state lives in the transport layer; this type
// only answers "is this session still usable".
type GroupSession struct {
	RoomID   string
	Settings EncryptionSettings

	mu           sync.Mutex
	createdAt    time.Time
	messageCount uint64
}

// NewGroupSession starts bookkeeping for a session created now.
func NewGroupSession(roomID string, settings EncryptionSettings, now time.Time) *GroupSession {
	return &GroupSession{
		RoomID:    roomID,
		Settings:  settings,
		createdAt: now,
	}
}

// RecordMessage counts one message sent with this session.
func (s *GroupSession) RecordMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
}

// MessageCount returns how many messages the session has encrypted.
func (s *GroupSession) MessageCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// CreatedAt returns the session creation time.
func (s *GroupSession) CreatedAt() time.Time {
	return s.createdAt
}

// NeedsRotation reports whether either rotation threshold has been crossed:
// the session's age reached RotationPeriod, or the message count reached
// RotationPeriodMessages. Both checks are inclusive.
func (s *GroupSession) NeedsRotation(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Settings.RotationPeriod > 0 && now.Sub(s.createdAt) >= s.Settings.RotationPeriod {
		return true
	}
	if s.Settings.RotationPeriodMessages > 0 && s.messageCount >= s.Settings.RotationPeriodMessages {
		return true
	}
	return false
}
