// File: cmd/wsc/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// wsc is an interactive WebSocket client.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wsc",
		Short:         "WebSocket client speaking RFC 6455, hybi-10 and hybi-00",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDialCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wsc:", err)
		os.Exit(1)
	}
}
