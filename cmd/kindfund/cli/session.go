package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kindfund/kindfund/internal/client"
)

// serverFlag adds --server, defaulting to the locally configured port.
func serverFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "server", "", "kindfund server URL (default: http://localhost:<server.port>)")
}

func (a *app) serverURL(flag string) string {
	if flag != "" {
		return strings.TrimRight(flag, "/")
	}
	return fmt.Sprintf("http://localhost:%d", a.v.GetInt("server.port"))
}

// newClient returns an API client holding its session in <data-dir>/session.
func (a *app) newClient(serverURL string) *client.Client {
	return client.New(a.serverURL(serverURL), client.NewFileTokenStore(a.resolveDataDir()))
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		serverURL string
		email     string
		password  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a kindfund server as an admin",
		Long: `Exchange admin credentials for a session token. The token is kept in
<data-dir>/session until logout, expiry, or the server rejecting it.`,
		Example: `  kindfund login --email admin@example.com
  kindfund login --server https://api.example.org --email admin@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ", false)
				if err != nil {
					return err
				}
			}

			res, err := a.newClient(serverURL).Login(cmdContext(cmd), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session expires %s)\n",
				res.Email, res.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	serverFlag(cmd, &serverURL)
	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.newClient(serverURL).Logout(cmdContext(cmd))
			if errors.Is(err, client.ErrNotLoggedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err != nil {
				// The local session is gone even when the server was unreachable.
				return fmt.Errorf("session cleared locally: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}

	serverFlag(cmd, &serverURL)

	return cmd
}
