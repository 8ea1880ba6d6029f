// Package domain contains core concepts of the messaging engine.
// No runtime, network, or storage logic should be added here.
package domain

import "github.com/google/uuid"

// UserID is the opaque stable identifier owned by the auth collaborator.
// The engine stores and compares it, never interprets or mutates it.
type UserID string

// SessionID identifies one live transport connection of a user.
// A user may hold several concurrent sessions (multi-device).
type SessionID string

// NewSessionID mints a fresh identifier for an accepted connection.
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}
