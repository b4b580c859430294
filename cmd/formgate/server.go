package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/alex65536/formgate/internal/database"
	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/regapi"
	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/signal"
	"github.com/alex65536/formgate/internal/webui"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Args:  cobra.ExactArgs(0),
	Short: "Start FormGate server",
	Long: `Runs the registration web UI and the JSON registration API.

Secrets (CSRF and session keys) are generated on the first run and stored in the secrets
file.
`,
}

func readSecrets(path string) (*Secrets, error) {
	rawSecrets, err := os.ReadFile(path)
	if err != nil {
		rawSecrets = nil
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read secrets: %w", err)
		}
	}
	var secrets Secrets
	if err := toml.Unmarshal(rawSecrets, &secrets); err != nil {
		return nil, fmt.Errorf("unmarshal secrets: %w", err)
	}
	changed, err := secrets.GenerateMissing()
	if err != nil {
		return nil, fmt.Errorf("generate secrets: %w", err)
	}
	if changed {
		newRawSecrets, err := toml.Marshal(&secrets)
		if err != nil {
			return nil, fmt.Errorf("marshal secrets: %w", err)
		}
		if err := os.WriteFile(path, newRawSecrets, 0600); err != nil {
			return nil, fmt.Errorf("write secrets: %w", err)
		}
	}
	return &secrets, nil
}

func readOptions(path string) (Options, error) {
	var opts Options
	if path == "" {
		return opts, nil
	}
	rawOpts, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read options: %w", err)
	}
	if err := toml.Unmarshal(rawOpts, &opts); err != nil {
		return Options{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return opts, nil
}

func init() {
	p := serverCmd.Flags()
	optsPath := p.StringP(
		"options", "o", "",
		"options file",
	)
	secretsPath := p.StringP(
		"secrets", "s", "",
		"secrets file",
	)
	if err := serverCmd.MarkFlagRequired("secrets"); err != nil {
		panic(err)
	}

	serverCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		secrets, err := readSecrets(*secretsPath)
		if err != nil {
			return err
		}
		opts, err := readOptions(*optsPath)
		if err != nil {
			return err
		}
		if err := opts.MixSecrets(secrets); err != nil {
			return fmt.Errorf("mix secrets into options: %w", err)
		}
		opts.FillDefaults()
		if err := opts.Gate.Limits.Validate(); err != nil {
			return fmt.Errorf("gate limits: %w", err)
		}

		log, err := makeLogger(cmd, opts.Log)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		db, err := database.New(log, opts.DB)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		fn, err := digest.Lookup(opts.Gate.Digest)
		if err != nil {
			return fmt.Errorf("gate digest: %w", err)
		}
		users, err := userauth.NewManager(log, db, opts.Gate.Limits, fn, opts.Users)
		if err != nil {
			return fmt.Errorf("create user manager: %w", err)
		}

		mux := http.NewServeMux()
		if !opts.NoAPI {
			if err := regapi.RegisterServer(regapi.NewUserServer(users), mux, opts.API, "/api", log); err != nil {
				return fmt.Errorf("register api: %w", err)
			}
		}
		if !opts.NoWebUI {
			opts.WebUI.Gate = opts.Gate
			if err := webui.Handle(ctx, log, mux, "", webui.Config{
				UserManager:         users,
				SessionStoreFactory: db,
			}, opts.WebUI); err != nil {
				return fmt.Errorf("handle webui: %w", err)
			}
		}

		servers, err := newServers(ctx, log, &opts, mux)
		if err != nil {
			return fmt.Errorf("create servers: %w", err)
		}
		return servers.Run(ctx)
	}
}
