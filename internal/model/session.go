package model

// Credentials is the input of a login attempt.
type Credentials struct {
	Username   string
	Password   string
	RemoteAddr string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string
	Profile   Profile
	ExpiresIn int64
}

// RefreshResult is returned on successful refresh.
type RefreshResult struct {
	Token     string
	ExpiresIn int64
}

// Principal is the identity resolved from a valid bearer token.
type Principal struct {
	Claims  Claims
	Profile Profile
}
