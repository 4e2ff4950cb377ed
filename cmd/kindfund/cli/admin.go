package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kindfund/kindfund/internal/service"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long: `Create and list administrators directly in the database. These commands work
offline: the first admin is provisioned this way, later ones may also be added
through the gated register endpoint.`,
	}

	cmd.AddCommand(newAdminCreateCmd(a))
	cmd.AddCommand(newAdminListCmd(a))

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  kindfund admin create --email admin@example.com --password secret123
  kindfund admin create --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd, a, email, password, name)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(cmd *cobra.Command, a *app, email, password, name string) error {
	if password == "" {
		var err error
		password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ", true)
		if err != nil {
			return err
		}
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Registration issues no token, so a missing secret is not an error here.
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	authSvc, err := service.NewAuthService(store, secret)
	if err != nil {
		return err
	}

	admin, err := authSvc.Register(cmdContext(cmd), email, password, name)
	if err != nil {
		if errors.Is(err, service.ErrAdminExists) {
			return fmt.Errorf("admin %q already exists", email)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created admin user %q (id %s)\n", admin.Email, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd, a, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(cmd *cobra.Command, a *app, jsonOutput bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	admins, err := store.ListAdmins(cmdContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No admin users configured. Use 'kindfund admin create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-30s %-24s %-20s\n", "EMAIL", "NAME", "CREATED")
	fmt.Fprintf(out, "%-30s %-24s %-20s\n", "-----", "----", "-------")
	for _, ad := range admins {
		fmt.Fprintf(out, "%-30s %-24s %-20s\n", ad.Email, ad.Name, ad.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
