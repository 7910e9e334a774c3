// Package utils provides shared file helpers for vminfo, most notably the
// atomic replace used by the token store and the local result cache.
package utils
