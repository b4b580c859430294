package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/util/style"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var checkCmd = &cobra.Command{
	Use:   "check username",
	Args:  cobra.ExactArgs(1),
	Short: "Check a username and a password against the rules",
	Long: `Reads the password from the terminal (without echo) or from the first line of
stdin, and prints the message of the first rule that blocks the pair. Exits with status 1
if the pair is blocked.
`,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Args:  cobra.ExactArgs(0),
	Short: "Print the digest of the first line of stdin",
}

func readSecretLine(prompt string) (string, error) {
	if style.IsTerminal(os.Stdin.Fd()) {
		_, _ = fmt.Fprint(stderr, prompt)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	p := checkCmd.Flags()
	var limits formgate.Limits
	p.IntVar(&limits.UsernameMin, "username-min", 0, "minimum username length")
	p.IntVar(&limits.UsernameMax, "username-max", 0, "maximum username length")
	p.IntVar(&limits.PasswordMin, "password-min", 0, "minimum password length")
	p.IntVar(&limits.PasswordMax, "password-max", 0, "maximum password length")
	detailed := p.BoolP("detailed", "d", false, "show both length bounds in messages")

	checkCmd.RunE = func(cmd *cobra.Command, args []string) error {
		limits.FillDefaults()
		if err := limits.Validate(); err != nil {
			return fmt.Errorf("limits: %w", err)
		}
		password, err := readSecretLine("Password: ")
		if err != nil {
			return err
		}
		err = limits.Check(args[0], password)
		var vErr *formgate.ValidationError
		if errors.As(err, &vErr) {
			msg := vErr.Message()
			if *detailed {
				msg = vErr.Detail()
			}
			_, _ = fmt.Fprintln(stdout, style.Wrap(style.StdoutSupportsColor(), msg, style.Red))
			return errBlocked
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, style.Wrap(style.StdoutSupportsColor(), "ok", style.Green))
		return nil
	}

	p = digestCmd.Flags()
	algo := p.StringP("algo", "a", digest.DefaultName, "digest algorithm")

	digestCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		fn, err := digest.Lookup(*algo)
		if err != nil {
			return fmt.Errorf("%w (known: %v)", err, strings.Join(digest.Names(), ", "))
		}
		line, err := readSecretLine("Text: ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, fn.Sum(line))
		return nil
	}
}
