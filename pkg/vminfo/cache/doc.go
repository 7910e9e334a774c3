// Package cache stores complete query result sets keyed by query
// fingerprint. The file backend replaces its document atomically so a reader
// never sees a partially written result; the redis backend writes each entry
// with a single SET.
package cache
