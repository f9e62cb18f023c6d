package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/secret"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the Firebird password in the OS keychain",
	Long: `The stored password becomes the default password for projects whose
.falcon file sets "keyring: true". FIREBIRD_PASSWORD and --password still
take precedence.`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the default Firebird password",
	Long:  `Set prompts for the password on a terminal, or reads one line from stdin otherwise.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		store, err := secret.Open()
		if err != nil {
			return err
		}
		if err := store.SetPassword(pw); err != nil {
			return err
		}
		pterm.Success.Println("Password stored in the keychain")
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored Firebird password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secret.Open()
		if err != nil {
			return err
		}
		if err := store.DeletePassword(); err != nil {
			return err
		}
		pterm.Success.Println("Password removed from the keychain")
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}

func readPassword(in io.Reader) (config.Secret, error) {
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		pw, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Firebird password")
		if err != nil {
			return "", err
		}
		return config.Secret(pw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return config.Secret(strings.TrimRight(line, "\r\n")), nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
