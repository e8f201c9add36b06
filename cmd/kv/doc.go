// Package kv is the key-value persistence substrate for Study Sprint.
//
// Every durable piece of state (credentials, token records, cursors, study history) is a value
// under a string key. Backends implement Store; the typed Records helper layers JSON encoding,
// optional TTL and optimistic read-modify-write (CompareAndSwap retry) on top of any backend.
//
// Backends:
//   - MemoryStore: process-local map, used for development and tests.
//   - PostgresStore: a single kv_entries table over a pgx pool (migrations embedded, run with goose).
//   - RedisStore: go-redis client, CAS through WATCH/MULTI.
//
// The pgx pool and redis client passed into constructors are owned by the caller.
package kv
