// Package identity holds registered users and their credentials.
//
// Users are keyed by their exact username (case-sensitive, no normalization) and are
// immutable once created. Creation is an atomic insert, so two concurrent registrations of
// the same name cannot both succeed.
package identity
