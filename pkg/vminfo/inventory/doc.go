// Package inventory defines the virtual machine record returned by Resource
// Graph, the query descriptor that selects records, and the fingerprint that
// keys cached result sets.
package inventory
