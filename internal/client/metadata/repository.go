// Package metadata is the client's local key-value table. The credential
// store keeps the signed-in session in it so a restarted client resumes.
package metadata

import "context"

// Keys of the persisted session.
const (
	KeyUserID      = "session.user_id"
	KeyAccessToken = "session.access_token"
	KeyUsername    = "session.username"
)

// SessionKeys lists every key written on sign-in.
var SessionKeys = []string{KeyUserID, KeyAccessToken, KeyUsername}

// Repository reads and writes metadata values. Get returns (nil, nil) for
// an absent key and a non-nil slice for a stored one, even if empty.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}
