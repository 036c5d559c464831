package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims of a session resume token.
// A client that received one in LOGIN_RESP may present it on a later LOGIN instead of its password.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer as top-level registered claims.
	jwt.StandardClaims

	// Epoch is the user's credential epoch at issue time. A later password login
	// advances it and the token stops verifying.
	Epoch uint64 `json:"epoch"`

	// Username is the identity the token was issued to.
	Username string `json:"username"`

	// Role is the role the user held at issue time. It is informational; the
	// user directory stays authoritative for permission checks.
	Role string `json:"role"`
}
