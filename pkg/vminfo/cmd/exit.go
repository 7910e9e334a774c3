package cmd

import (
	"context"
	"errors"

	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/client"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

const (
	ExitOK          = 0
	ExitError       = 1
	ExitAuth        = 2
	ExitInvalid     = 3
	ExitTransient   = 4
	ExitInterrupted = 130
)

// ExitCode maps an error returned by the command tree to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case auth.NeedsLogin(err):
		return ExitAuth
	case errors.Is(err, inventory.ErrInvalidQuery):
		return ExitInvalid
	case client.IsTransient(err):
		return ExitTransient
	default:
		return ExitError
	}
}

// Hint returns a follow-up suggestion for err, or "".
func Hint(err error) string {
	switch ExitCode(err) {
	case ExitAuth:
		if errors.Is(err, auth.ErrLoginRequired) {
			return ""
		}
		return "re-run with --login to authenticate"
	case ExitTransient:
		return "Azure did not answer; retry later"
	default:
		return ""
	}
}
