package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored Anthropic API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key (prompts when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		secret := ""
		if len(args) == 1 {
			secret = args[0]
		} else if secret, err = readSecret(); err != nil {
			return err
		}
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return errors.New("API key must not be empty")
		}
		if err := credentialStore(cfg).Set(cmd.Context(), cfg.Session.CredentialName, secret); err != nil {
			return err
		}
		fmt.Println(render(successStyle, "Stored "+credentials.Redact(secret)))
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key, redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		secret, err := credentialStore(cfg).Get(cmd.Context(), cfg.Session.CredentialName)
		if errors.Is(err, credentials.ErrCredentialNotFound) {
			return fmt.Errorf("no API key stored: run `mirrorctl key set`")
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", render(labelStyle, cfg.Session.CredentialName+":"), render(valueStyle, credentials.Redact(secret)))
		return nil
	},
}

func readSecret() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Anthropic API key: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read key: %w", err)
	}
	return line, nil
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyShowCmd)
}
