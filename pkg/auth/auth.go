// Package auth provides bearer token sources for authenticating against
// inference backends. Local servers typically need none; hosted gateways
// take a static API key or a signed short-lived token (see the jwt
// subpackage).
package auth

// TokenSource yields the bearer token to send with a request. An empty
// token means the Authorization header is omitted entirely.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource returning a fixed API key.
type StaticToken string

// Token returns the key itself.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}
