package store

import "fmt"

// SessionKey scopes a bucket key to one session. Buckets from different
// sessions never collide, and a whole session can be cleared with
// DeleteBucketsWithPrefix(SessionPrefix(id)).
func SessionKey(sessionID, bucketKey string) string {
	return fmt.Sprintf("%s:%s", sessionID, bucketKey)
}

// SessionPrefix returns the key prefix covering every bucket of a session.
func SessionPrefix(sessionID string) string {
	return sessionID + ":"
}
