// Package ratelimit provides the token-bucket limiter that paces outgoing
// Resource Graph page requests.
package ratelimit
