package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/AntonStoeckl/library-lending-go/app/identity"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

var (
	userName  string
	userEmail string
)

var userAddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create an account; the password is read from the terminal or from stdin",
	RunE:  runUserAdd,
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	accounts, err := identity.Open(cmd.Context(), cfg.Identity.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = accounts.Close() }()

	user, err := accounts.SignUp(cmd.Context(), identity.SignUpInput{
		Name:     userName,
		Email:    userEmail,
		Password: password,
	})

	var verr *lending.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid account: %s", strings.Join(verr.Messages(), " "))
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "created user %s <%s>\n", user.ID, user.Email)

	return err
}

// readPassword prompts without echo on a terminal and reads one line otherwise, so it can be piped in.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit into int

	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())

		return string(password), err
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
