package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/formdoc/internal/roles"
)

// RoleResult is the output of the role command.
type RoleResult struct {
	Form         string             `json:"form"`
	User         string             `json:"user"`
	Role         roles.Role         `json:"role"`
	Capabilities roles.Capabilities `json:"capabilities"`
}

// NewRoleCommand creates the role command.
func NewRoleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "role <form-id> <user-id>",
		Short: "Show a user's effective role on a form",
		Long: `Resolve a user's effective role on a form and the capabilities it grants.

The owner is always owner; otherwise the highest of the user's direct grant
and the grants of groups the user belongs to (from the config's groups map).`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				role, err := env.Service.ResolveRole(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				res := RoleResult{
					Form:         args[0],
					User:         args[1],
					Role:         role,
					Capabilities: roles.CapabilitiesFor(role),
				}
				return out.Result(res, func(w io.Writer) {
					fmt.Fprintf(w, "%s is %s on %s\n", res.User, res.Role, res.Form)
					printCapabilities(w, res.Capabilities)
				})
			})
		},
	}
}

func printCapabilities(w io.Writer, c roles.Capabilities) {
	caps := []struct {
		name string
		ok   bool
	}{
		{"respond", c.Respond},
		{"view responses", c.ViewResponses},
		{"edit questions", c.EditQuestions},
		{"edit settings", c.EditSettings},
		{"delete responses", c.DeleteResponses},
		{"delete form", c.DeleteForm},
		{"manage permissions", c.ManagePermissions},
	}
	for _, cp := range caps {
		mark := "\u2717"
		if cp.ok {
			mark = "\u2713"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, cp.name)
	}
}

// NewShareCommand creates the share command group.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Manage public links, share passwords and API keys",
	}
	cmd.AddCommand(newSharePasswordCommand(rootOpts))
	cmd.AddCommand(newShareTokenCommand(rootOpts))
	cmd.AddCommand(newAPIKeyCreateCommand(rootOpts))
	cmd.AddCommand(newAPIKeyRevokeCommand(rootOpts))
	return cmd
}

func newSharePasswordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "password <form-id> [password]",
		Short: "Set or clear the share password",
		Long: `Protect the form's public link with a password. Without a password
argument the protection is removed.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 2 {
				password = args[1]
			}
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				if err := env.Service.SetSharePassword(cmd.Context(), args[0], password); err != nil {
					return err
				}
				return out.Result(map[string]bool{"protected": password != ""}, func(w io.Writer) {
					if password == "" {
						fmt.Fprintln(w, "\u2713 Share password removed")
						return
					}
					fmt.Fprintln(w, "\u2713 Share password set")
				})
			})
		},
	}
}

func newShareTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rotate-token <form-id>",
		Short:         "Issue a new public link token",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				token, err := env.Service.RotatePublicToken(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.Result(map[string]string{"publicToken": token}, func(w io.Writer) {
					fmt.Fprintf(w, "\u2713 Public token: %s\n", token)
				})
			})
		},
	}
}

// APIKeyResult is the output of share api-key. Key is shown only once.
type APIKeyResult struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Key         string   `json:"key"`
	Permissions []string `json:"permissions"`
}

func newAPIKeyCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var perms []string

	cmd := &cobra.Command{
		Use:   "api-key <form-id> <name>",
		Short: "Create an API key for a form",
		Long: `Create an API key. The plaintext key is printed once and only its
hash is stored.

Example:
  formdoc share api-key f1 ci --perm responses:read`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				plaintext, key, err := env.Service.CreateAPIKey(cmd.Context(), args[0], args[1], perms)
				if err != nil {
					return err
				}
				res := APIKeyResult{ID: key.ID, Name: key.Name, Key: plaintext, Permissions: key.Permissions}
				return out.Result(res, func(w io.Writer) {
					fmt.Fprintf(w, "\u2713 API key %s (%s)\n", res.ID, res.Name)
					fmt.Fprintf(w, "  %s\n", res.Key)
					fmt.Fprintln(w, "  Store it now; it cannot be shown again.")
				})
			})
		},
	}

	cmd.Flags().StringSliceVar(&perms, "perm", nil, "permission granted to the key (repeatable)")

	return cmd
}

func newAPIKeyRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "revoke-key <form-id> <key-id>",
		Short:         "Revoke an API key",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				if err := env.Service.RevokeAPIKey(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return out.Result(map[string]string{"revoked": args[1]}, func(w io.Writer) {
					fmt.Fprintf(w, "\u2713 Revoked API key %s\n", args[1])
				})
			})
		},
	}
}
