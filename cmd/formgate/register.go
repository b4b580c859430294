package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alex65536/formgate/internal/regapi"
	"github.com/alex65536/formgate/internal/termform"
	"github.com/alex65536/formgate/internal/util/signal"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/alex65536/formgate/internal/util/style"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Args:  cobra.ExactArgs(0),
	Short: "Register a new user from the terminal",
	Long: `Asks for a username and a password, checks them and registers the user on a
FormGate server. Only the password digest is sent.
`,
}

func init() {
	p := registerCmd.Flags()
	endpoint := p.StringP(
		"endpoint", "e", "http://127.0.0.1:8080/api",
		"registration api endpoint")
	maxAttempts := p.IntP(
		"max-attempts", "n", 0,
		"give up after this many attempts (negative means never)")
	offline := p.Bool(
		"offline-rules", false,
		"use local rules instead of fetching them from the server")

	registerCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		log, err := makeLogger(cmd, slogx.Options{Level: "warn"})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		api, err := regapi.NewClient(regapi.ClientOptions{Endpoint: *endpoint}, &http.Client{
			Timeout: 30 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		res, err := termform.Run(ctx, log, termform.Config{
			API:   api,
			In:    os.Stdin,
			Out:   stdout,
			Color: style.StdoutSupportsColor(),
		}, termform.Options{
			MaxAttempts: *maxAttempts,
			FetchRules:  !*offline,
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, style.Wrap(style.StdoutSupportsColor(),
			fmt.Sprintf("Registered %v (id %v)", res.Username, res.UserID), style.Bold, style.Green))
		return nil
	}
}
