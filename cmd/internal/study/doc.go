// Package study allocates question indices per user and keeps each user's session history.
//
// Allocation advances a per-user cursor with a compare-and-swap loop on the cursor key, so
// concurrent starts for one user never share indices while different users never contend.
// Indices are raw cursor values; callers reduce them modulo the current pool size to render.
package study
