// Package auth issues and validates the bearer tokens that guard the HTTP
// API.
//
// Tokens are HS256 JWTs carrying a subject and one of two roles:
//   - viewer: may read status, inventory and the live telegram stream
//   - operator: may additionally send group telegrams to the bus
//
// Tokens are stateless. There is no user store; whoever holds the
// signing secret mints tokens with the token command.
package auth
