// Command netbench is the CLI collaborator spec §6 leaves external to the
// core: argument parsing, log formatting, and exit-code mapping around the
// measurement pipeline. Grounded on the teacher's cmd/ns-engine for the
// load-config/build/run/signal-shutdown shape, generalized here from a
// single long-running aggregator to a cobra command tree with a run,
// baseline, and version subcommand, the way the pack's firestige-Otus and
// ethpandaops-observoor CLIs are structured around spf13/cobra.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	log     = logrus.New()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "netbench",
		Short: "Host-local network telemetry harness for CI regression gating",
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "netbench.yaml", "path to the YAML configuration file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newBaselineCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "netbench:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command error to the exit code spec §6 defines. Only
// the run command ever returns an *exitError; every other failure falls
// through to 1.
func exitCodeFor(err error) int {
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}

// exitError carries a specific exit code for a command failure, so the
// run command can signal 0/2/3/4 without main needing to know about
// regression.Outcome directly.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
