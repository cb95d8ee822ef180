package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formdoc/internal/docstore"
	"github.com/roach88/formdoc/internal/form"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Title       string
	Description string
	Template    string
	Owner       string
	Questions   string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new form",
		Long: `Create a new form document with no responses.

Questions are given as a JSON array, inline or as @file. With --template the
template's title, description and questions fill any that are not given.

Examples:
  formdoc create --title "Team lunch" --owner alice --questions @questions.json
  formdoc create --template quiz --owner alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				return runCreate(opts, env, out, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "form title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "form description")
	cmd.Flags().StringVar(&opts.Template, "template", "", "start from a named template")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owning user id (required)")
	cmd.Flags().StringVar(&opts.Questions, "questions", "", "questions as a JSON array or @file")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runCreate(opts *CreateOptions, env *Env, out *OutputFormatter, cmd *cobra.Command) error {
	req := docstore.CreateRequest{
		Title:       opts.Title,
		Description: opts.Description,
		Template:    opts.Template,
		Owner:       opts.Owner,
	}
	if opts.Questions != "" {
		if err := decodeJSONArg(opts.Questions, &req.Questions); err != nil {
			return badInput(out, "--questions", err)
		}
	}

	doc, err := env.Service.Create(cmd.Context(), req)
	if err != nil {
		return err
	}
	out.VerboseLog("created %s with %d question(s)", doc.ID, len(doc.Questions))
	return out.Result(doc, func(w io.Writer) {
		fmt.Fprintf(w, "\u2713 Created form %s (%s)\n", doc.ID, doc.Title)
	})
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Public bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <form-id>",
		Short: "Print a form document",
		Long: `Print the stored form document.

With --public only the respondent-facing view is printed: no responses,
permissions, secrets or quiz scores.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				var (
					data any
					err  error
				)
				if opts.Public {
					data, err = env.Service.LoadPublicView(cmd.Context(), args[0])
				} else {
					data, err = env.Service.Load(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				if out.Format == "json" {
					return out.Success(data)
				}
				enc := json.NewEncoder(out.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(data)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Public, "public", false, "print the public view")

	return cmd
}

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Title       string
	Description string
	Settings    string
	Questions   string
	Favorite    bool
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <form-id>",
		Short: "Change a form's definition",
		Long: `Change a form's title, description, settings or questions.

Only the flags given are changed. --settings is a JSON object whose keys are
merged into the current settings; the share password, public token and API
keys are changed with the share commands instead. --questions replaces the
question list. Responses are kept.

Examples:
  formdoc update f1 --title "Renamed"
  formdoc update f1 --settings '{"allow_multiple":true}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				return runUpdate(opts, args[0], env, out, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "new description")
	cmd.Flags().StringVar(&opts.Settings, "settings", "", "settings to change as a JSON object or @file")
	cmd.Flags().StringVar(&opts.Questions, "questions", "", "replacement questions as a JSON array or @file")
	cmd.Flags().BoolVar(&opts.Favorite, "favorite", false, "mark or unmark the form as a favorite")

	return cmd
}

func runUpdate(opts *UpdateOptions, id string, env *Env, out *OutputFormatter, cmd *cobra.Command) error {
	ctx := cmd.Context()
	var p docstore.Patch
	flags := cmd.Flags()

	if flags.Changed("title") {
		p.Title = &opts.Title
	}
	if flags.Changed("description") {
		p.Description = &opts.Description
	}
	if flags.Changed("favorite") {
		p.Favorite = &opts.Favorite
	}
	if opts.Questions != "" {
		var qs []form.Question
		if err := decodeJSONArg(opts.Questions, &qs); err != nil {
			return badInput(out, "--questions", err)
		}
		p.Questions = &qs
	}
	if opts.Settings != "" {
		var settings form.SettingsPatch
		if err := decodeJSONArg(opts.Settings, &settings); err != nil {
			return badInput(out, "--settings", err)
		}
		p.Settings = &settings
	}

	doc, err := env.Service.Update(ctx, id, p)
	if err != nil {
		return err
	}
	return out.Result(doc, func(w io.Writer) {
		fmt.Fprintf(w, "\u2713 Updated form %s\n", doc.ID)
	})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <form-id>",
		Short:         "Delete a form and all its responses",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				if err := env.Service.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return out.Result(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "\u2713 Deleted form %s\n", args[0])
				})
			})
		},
	}
}

// decodeJSONArg decodes a flag value that is either inline JSON or @path.
func decodeJSONArg(arg string, into any) error {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// badInput reports an unusable flag value as a command error.
func badInput(out *OutputFormatter, flag string, err error) error {
	_ = out.Error(ErrCodeBadInput, fmt.Sprintf("%s: %v", flag, err), nil)
	return WrapExitError(ExitCommandError, "invalid "+flag, err)
}
