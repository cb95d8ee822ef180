package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/docstore"
	"github.com/roach88/formdoc/internal/form"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Answers     string
	User        string
	DisplayName string
	Fingerprint string
	External    string
	Source      string
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append <form-id>",
		Short: "Submit a response to a form",
		Long: `Submit a response to a form.

Answers are a JSON object mapping question ids to values, inline or as @file.
The respondent is a user (--user), an external source (--external) or, by
default, anonymous with the given --fingerprint.

Exit codes:
  0 - Response stored
  1 - Rejected (validation, duplicate, expired, lock timeout)
  2 - Command error

Examples:
  formdoc append f1 --fingerprint 9b2c --answers '{"q1":"5"}'
  formdoc append f1 --user alice --answers @answers.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				return runAppend(opts, args[0], env, out, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Answers, "answers", "{}", "answers as a JSON object or @file")
	cmd.Flags().StringVar(&opts.User, "user", "", "respond as this user id")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "", "display name of the user or external respondent")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "anonymous respondent fingerprint")
	cmd.Flags().StringVar(&opts.External, "external", "", "respond as an external respondent with this name")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source of an external respondent")
	cmd.MarkFlagsMutuallyExclusive("user", "fingerprint", "external")

	return cmd
}

func runAppend(opts *AppendOptions, id string, env *Env, out *OutputFormatter, cmd *cobra.Command) error {
	var sub docstore.Submission
	if err := decodeJSONArg(opts.Answers, &sub.Answers); err != nil {
		return badInput(out, "--answers", err)
	}
	if sub.Answers == nil {
		sub.Answers = answer.Answers{}
	}

	switch {
	case opts.User != "":
		sub.Respondent = form.User(opts.User, opts.DisplayName)
	case opts.External != "":
		sub.Respondent = form.External(opts.External, opts.Source)
	default:
		sub.Respondent = form.Anonymous(opts.Fingerprint)
	}

	resp, err := env.Service.AppendResponse(cmd.Context(), id, sub)
	if err != nil {
		return err
	}
	return out.Result(resp, func(w io.Writer) {
		fmt.Fprintf(w, "\u2713 Stored response %s\n", resp.ID)
		if resp.Score != nil {
			fmt.Fprintf(w, "  Score: %s / %s\n", formatFloat(resp.Score.Total), formatFloat(resp.Score.Max))
		}
	})
}

// NewDeleteResponseCommand creates the delete-response command.
func NewDeleteResponseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete-response <form-id> <response-id>",
		Short:         "Delete one response and rebuild the index",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				if err := env.Service.DeleteResponse(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return out.Result(map[string]string{"deleted": args[1]}, func(w io.Writer) {
					fmt.Fprintf(w, "\u2713 Deleted response %s\n", args[1])
				})
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear <form-id>",
		Short:         "Delete every response of a form",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				n, err := env.Service.DeleteAllResponses(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.Result(map[string]int{"deleted": n}, func(w io.Writer) {
					fmt.Fprintf(w, "\u2713 Deleted %d response(s)\n", n)
				})
			})
		},
	}
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "summary <form-id>",
		Short:         "Print response counts and per-question tallies",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				sum, err := env.Service.GetSummary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.Result(sum, func(w io.Writer) { printSummary(w, sum) })
			})
		},
	}
}

func printSummary(w io.Writer, sum *docstore.Summary) {
	fmt.Fprintf(w, "Responses: %d\n", sum.ResponseCount)
	if sum.LastResponseAt != nil {
		fmt.Fprintf(w, "Last response: %s\n", sum.LastResponseAt.Format("2006-01-02 15:04:05 MST"))
	}
	for _, qs := range sum.PerQuestion {
		typ := string(qs.Type)
		if typ == "" {
			typ = "undefined"
		}
		fmt.Fprintf(w, "\n%s (%s)\n", qs.ID, typ)
		keys := make([]string, 0, len(qs.AnswerCounts))
		for k := range qs.AnswerCounts {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-20s %d\n", k, qs.AnswerCounts[k])
		}
		if qs.Average != nil {
			fmt.Fprintf(w, "  average %s, min %s, max %s\n",
				formatFloat(*qs.Average), formatFloat(*qs.Min), formatFloat(*qs.Max))
		}
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <form-id>",
		Short: "Check the index against the responses",
		Long: `Check that the stored index matches the responses array.

Exits 1 when the checksum or count is stale; run "formdoc rebuild" to fix it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				ok, err := env.Service.VerifyIndex(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					_ = out.Error(ErrCodeIndexStale, "index does not match responses", map[string]string{"form": args[0]})
					return NewExitError(ExitFailure, "index stale")
				}
				return out.Result(map[string]bool{"valid": true}, func(w io.Writer) {
					fmt.Fprintln(w, "\u2713 Index valid")
				})
			})
		},
	}
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rebuild <form-id>",
		Short:         "Recompute the index from the responses",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				if err := env.Service.RebuildIndex(cmd.Context(), args[0]); err != nil {
					return err
				}
				return out.Result(map[string]bool{"rebuilt": true}, func(w io.Writer) {
					fmt.Fprintln(w, "\u2713 Index rebuilt")
				})
			})
		},
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
