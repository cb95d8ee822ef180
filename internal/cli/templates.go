package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// TemplateInfo describes one available template.
type TemplateInfo struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
}

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and watch form templates",
	}
	cmd.AddCommand(newTemplatesListCommand(rootOpts))
	cmd.AddCommand(newTemplatesWatchCommand(rootOpts))
	return cmd
}

func newTemplatesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List built-in and configured templates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				infos := []TemplateInfo{}
				for _, name := range env.Templates.Names() {
					tmpl, _ := env.Templates.Get(name)
					infos = append(infos, TemplateInfo{Name: name, Title: tmpl.Title, Questions: len(tmpl.Questions)})
				}
				return out.Result(infos, func(w io.Writer) {
					for _, t := range infos {
						fmt.Fprintf(w, "%-16s %-32s %d question(s)\n", t.Name, t.Title, t.Questions)
					}
				})
			})
		},
	}
}

func newTemplatesWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload templates when the template directory changes",
		Long: `Watch the configured template directory and reload templates on change.

Runs until interrupted. Requires templates.dir in the config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(env *Env, out *OutputFormatter) error {
				if env.Config.Templates.Dir == "" {
					_ = out.Error(ErrCodeNoTemplates, "no template directory configured", nil)
					return NewExitError(ExitCommandError, "no template directory configured")
				}

				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()

				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sigChan) // Prevent signal handler leak

				go func() {
					select {
					case sig := <-sigChan:
						slog.Info("received signal, shutting down", "signal", sig)
						cancel()
					case <-ctx.Done():
					}
				}()

				fmt.Fprintf(out.GetErrWriter(), "Watching %s. Press Ctrl-C to stop.\n", env.Config.Templates.Dir)
				if err := env.Templates.Watch(ctx); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}
}
