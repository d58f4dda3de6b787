package model

import "time"

// Identity is the subject data carried inside a token.
type Identity struct {
	UserID   int64
	Username string
	RealName string
}

// Claims is a decoded token claim set.
type Claims struct {
	Identity
	ID        string
	Issuer    string
	Audience  string
	Subject   string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// TokenCodec encodes identities into signed tokens and decodes them back.
type TokenCodec interface {
	Encode(identity Identity) (string, Claims, error)
	Decode(token string) (Claims, error)
	Lifetime() time.Duration
}
