package model

import "time"

// SlotLock is an advisory lock serializing reservation attempts for one slot
// key. A TTL index on expires_at reclaims locks abandoned by crashed writers.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	SlotKey   string    `bson:"slot_key" json:"slot_key"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
