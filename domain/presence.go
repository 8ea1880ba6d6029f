package domain

import "time"

// Presence is the durable per-user activity record. IsOnline and
// TypingIn reflect current connection state and are ephemeral;
// LastSeenAt is monotonically non-decreasing. One record per user,
// upserted, never deleted.
type Presence struct {
	UserID     UserID
	IsOnline   bool
	TypingIn   *ConversationID
	LastSeenAt time.Time
}
