package model

import "time"

// SlotLock is an advisory lock taken before a guarded write. The lock key is
// the document id, so a second concurrent acquirer fails with a duplicate key
// error. A TTL index on expires_at reaps locks orphaned by a crashed request.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
