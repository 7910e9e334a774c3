// Package output renders query results and cache listings as JSON, YAML,
// tables or Go templates.
package output
