// Package config loads the vminfo YAML configuration and resolves the file
// locations of the token store and result cache.
package config
