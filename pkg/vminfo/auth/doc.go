// Package auth owns the Azure AD credential lifecycle for vminfo: it acquires
// access tokens through the device code, service principal and interactive
// (authorization code with PKCE) flows, refreshes them, and persists a single
// token record in a file or the OS keychain.
//
// Engine.GetValidToken is the entry point used before every query. It serves a
// stored token while it is usable, refreshes it when it is not, and falls back
// to a full flow when refreshing fails.
package auth
