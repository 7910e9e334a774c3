// Package cmd implements the cobra command tree for the vminfo CLI: the
// root query command with its login and logout shortcuts, plus subcommands
// for authentication, the result cache, configuration, version and shell
// completion.
package cmd
