package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	stdout = colorable.NewColorableStdout()
	stderr = colorable.NewColorableStderr()
)

// errBlocked makes the process exit with status 1 without printing anything else.
var errBlocked = errors.New("blocked")

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "formgate",
	Short:   "Validates registration forms before they are submitted",
	Long: `FormGate checks a username and a password against a fixed chain of rules and
submits the form only if all of them pass. The password never leaves the client in plain
text, only its digest is sent.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var logOpts slogx.Options

func makeLogger(cmd *cobra.Command, o slogx.Options) (*slog.Logger, error) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		o.Level = logOpts.Level
	}
	if flags.Changed("log-json") {
		o.JSON = logOpts.JSON
	}
	log, err := slogx.New(stderr, o)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

func main() {
	p := rootCmd.PersistentFlags()
	p.StringVar(&logOpts.Level, "log-level", "", "log level: debug, info, warn or error")
	p.BoolVar(&logOpts.JSON, "log-json", false, "write logs as json")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(digestCmd)
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errBlocked) {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
