package model

import "time"

// Lock is a short-lived exclusive claim on a (landlord, property) scope.
// The document id is the lock key, so a second insert fails with a duplicate key.
type Lock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
