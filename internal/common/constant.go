// Package common contains shared constants and sentinel errors used across
// DuoMatch components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Collection names known to the document store.
const (
	CollectionUsers    = "users"
	CollectionInvites  = "invites"
	CollectionAccounts = "accounts"
)
