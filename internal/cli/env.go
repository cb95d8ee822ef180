package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/formdoc/internal/blob"
	"github.com/roach88/formdoc/internal/config"
	"github.com/roach88/formdoc/internal/docstore"
	"github.com/roach88/formdoc/internal/lock"
	"github.com/roach88/formdoc/internal/logging"
	"github.com/roach88/formdoc/internal/pgstore"
	"github.com/roach88/formdoc/internal/roles"
	"github.com/roach88/formdoc/internal/store"
	"github.com/roach88/formdoc/internal/templates"
)

// Env is everything a command needs to work on documents.
type Env struct {
	Config    *config.Config
	Service   *docstore.Service
	Templates *templates.Registry

	closers []io.Closer
}

// Close releases storage and the log file.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// backend is a blob store that also serves as the lock table.
type backend interface {
	blob.Store
	lock.Backend
}

// openEnv loads the config, installs the logger and opens the configured
// storage. Diagnostics are logged to the command's stderr.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*Env, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger, logCloser, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	slog.SetDefault(logger)

	env := &Env{Config: cfg, closers: []io.Closer{logCloser}}

	var blobs backend
	switch cfg.Storage.Type {
	case config.StorageMemory:
		blobs = memoryBackend{
			MemoryStore:   blob.NewMemoryStore(cfg.Storage.VersionHistory),
			MemoryBackend: lock.NewMemoryBackend(),
		}
	case config.StorageSQLite:
		var sopts []store.Option
		if cfg.Storage.VersionHistory {
			sopts = append(sopts, store.WithVersionHistory())
		}
		st, err := store.Open(cfg.Storage.Path, sopts...)
		if err != nil {
			env.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		env.closers = append(env.closers, st)
		blobs = st
	case config.StoragePostgres:
		var popts []pgstore.Option
		if cfg.Storage.VersionHistory {
			popts = append(popts, pgstore.WithVersionHistory())
		}
		st, err := pgstore.Open(cfg.Storage.URL, popts...)
		if err != nil {
			env.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		env.closers = append(env.closers, st)
		blobs = st
	default:
		env.Close()
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unsupported storage type %q", cfg.Storage.Type))
	}
	slog.Debug("storage ready", "type", cfg.Storage.Type)

	reg, errs := templates.NewRegistry(cfg.Templates.Dir)
	for _, err := range errs {
		slog.Warn("template skipped", "error", err)
	}
	env.Templates = reg

	svcOpts := []docstore.Option{docstore.WithTemplates(reg)}
	if len(cfg.Groups) > 0 {
		svcOpts = append(svcOpts, docstore.WithGroupOracle(roles.StaticGroups(cfg.Groups)))
	}
	env.Service = docstore.New(blobs, lock.NewTableLock(blobs, cfg.LockOptions()), svcOpts...)
	return env, nil
}

// memoryBackend pairs the in-memory blob store with the in-memory lock
// table. Documents live only as long as the process.
type memoryBackend struct {
	*blob.MemoryStore
	*lock.MemoryBackend
}

// withEnv opens the environment, runs fn and closes it. Errors from fn are
// reported through the formatter.
func withEnv(opts *RootOptions, cmd *cobra.Command, fn func(env *Env, out *OutputFormatter) error) error {
	out := newFormatter(opts, cmd)
	env, err := openEnv(opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			slog.Error("error closing storage", "error", cerr)
		}
	}()
	if err := fn(env, out); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return out.Fail(err)
	}
	return nil
}
