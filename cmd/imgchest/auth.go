package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"imgchest/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage imgchest API tokens",
	Long: `Manage stored imgchest API tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable IMGCHEST_TOKEN (read only)

Never share your token or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store an API token securely",
	Long: `Store an imgchest API token in the system keychain or encrypted file.

The token is read without echo when stdin is a terminal, or as a single
line from stdin otherwise. Without an account name the token is stored
as the default account.`,
	Example: `  # Interactive login
  imgchest auth login

  # Store a second account
  imgchest auth login work

  # Non-interactive
  echo "$TOKEN" | imgchest auth login`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked tokens.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which token commands will use",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	if interactive {
		auth.ShowTokenGuide(out)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "API token for %q: ", name)
	token, err := readToken(in)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errors.New("token is required")
	}

	account := &auth.Account{
		Name:         name,
		Token:        token,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Fprintf(out, "Token stored for %s (%s)\n", name, auth.MaskToken(token))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account removed: %s\n", name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No stored accounts. Run 'imgchest auth login' to add one.")
		return nil
	}

	for _, account := range accounts {
		safe := account.Sanitized()
		modified := "-"
		if !safe.LastModified.IsZero() {
			modified = safe.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%-20s %-24s %s\n", safe.Name, safe.Token, modified)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if apiToken != "" {
		fmt.Fprintf(out, "Using token from --token (%s)\n", auth.MaskToken(apiToken))
		return nil
	}

	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := manager.RetrieveDefault()
	if err != nil {
		fmt.Fprintln(out, "Not logged in. Public posts can still be read with 'imgchest download' or 'imgchest get --scrape'.")
		return nil
	}

	fmt.Fprintf(out, "Using account %s (%s)\n", account.Name, auth.MaskToken(account.Token))
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readToken reads a hidden token from a terminal or one line from any other reader
func readToken(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
