// Package cli provides the command-line interface for signature validation.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Exit codes.
const (
	ExitValid   = 0
	ExitInvalid = 1
	ExitError   = 2
)

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if code := Execute(args[1:], os.Stdout, os.Stderr); code != ExitValid {
		osExit(code)
	}
}

// Execute runs the command line and returns the exit code. Reports go to
// stdout, diagnostics and logs to stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	var code int
	root := NewRootCommand(stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return code
}

// NewRootCommand builds the trustval command tree. The validate command
// stores its exit code in code.
func NewRootCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "trustval",
		Short:         "Validate advanced electronic signatures against a validation policy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newValidateCommand(code))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trustval version %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build time: %s\n", BuildTime)
		},
	}
}
