// Package session stores bearer-token sessions.
//
// A token is an opaque random string handed to the client at login. The server keeps only
// a digest of it (see security/token) mapped to {username, createdAt, expiresAt}. Several
// tokens may be valid for one user at once. Expired records are removed lazily when read.
package session
