package main

import (
	"fmt"
	"os"

	vminfocmd "github.com/telekom/azure-vminfo/pkg/vminfo/cmd"
)

func main() {
	root := vminfocmd.NewRootCommand(vminfocmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		if hint := vminfocmd.Hint(err); hint != "" {
			_, _ = fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(vminfocmd.ExitCode(err))
	}
}
