// Command renovate pins the ranged dependency versions of
// package.json files in GitHub or GitLab repositories and
// proposes the change as a pull request.
//
// Usage:
//
//	renovate [repository [packageFile]] [flags]
//
// Configuration is read from built-in defaults, the config
// file, the environment (optionally seeded from a .env file)
// and finally the command line, each layer overriding the
// previous one.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/toptaldev92/renovate/config"
	"github.com/toptaldev92/renovate/worker"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// logLevel is shared by the default logger and adjusted
// once the configuration is resolved.
var logLevel = new(slog.LevelVar)

// flagKeys maps command line flags onto configuration
// keys. Only flags set explicitly form the flag layer.
var flagKeys = []struct {
	flag string
	key  string
}{
	{flag: "token", key: "token"},
	{flag: "endpoint", key: "endpoint"},
	{flag: "platform", key: "platform"},
	{flag: "log-level", key: "logLevel"},
	{flag: "base-branch", key: "baseBranch"},
	{flag: "dry-run", key: "dryRun"},
	{flag: "automerge", key: "automerge"},
	{flag: "autodiscover", key: "autodiscover"},
	{flag: "parallelism", key: "parallelism"},
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(
		os.Stderr,
		&slog.HandlerOptions{Level: logLevel},
	)))

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "renovate [repository [packageFile]]",
		Short: "Pin package.json dependencies through pull requests",
		Long: `Pin the caret and tilde ranges of package.json files to exact
versions. Each package file gets an update branch and a pull request on
the repository's hosting platform (GitHub or GitLab).

Repositories come from the config file unless a repository is given on
the command line.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRenovate,
	}

	flags := root.Flags()
	flags.StringP("config", "c", "renovate.yaml", "path to the config file (YAML or JSON)")
	flags.String("env-file", "", "path to a .env file (default .env when present)")
	flags.String("token", "", "platform API token")
	flags.String("endpoint", "", "platform API base URL")
	flags.String("platform", "", "hosting platform: github or gitlab")
	flags.String("log-level", "", "log level: debug, verbose, info, warn or error")
	flags.String("base-branch", "", "branch to pin against instead of the default branch")
	flags.Bool("dry-run", false, "log the changes instead of committing them")
	flags.Bool("automerge", false, "merge pull requests once their checks pass")
	flags.Bool("autodiscover", false, "process every accessible repository when none are configured")
	flags.Int("parallelism", 1, "number of repositories processed concurrently")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"renovate %s (commit %s, built %s)\n",
				version, commit, date,
			)
		},
	})

	return root
}

func runRenovate(cmd *cobra.Command, args []string) error {
	const errCtx = "running renovate"

	if err := loadEnvFile(cmd); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	g, err := resolveConfig(cmd, args, os.Getenv)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	level, err := parseLevel(g.Config.LogLevel)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	logLevel.Set(level)

	if err := worker.Run(cmd.Context(), worker.Config{
		Global:      g,
		NewPlatform: newPlatform,
		Discover:    discoverRepositories,
	}); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// loadEnvFile seeds the environment from --env-file, or
// from ./.env when it exists. Variables already set win.
func loadEnvFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}

		return nil
	}

	if err := godotenv.Load(); err != nil &&
		!errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	return nil
}

// resolveConfig merges defaults, the config file and the
// environment, flag and argument layers.
func resolveConfig(
	cmd *cobra.Command,
	args []string,
	getenv func(string) string,
) (*config.Global, error) {
	path, _ := cmd.Flags().GetString("config")

	custom, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	override := config.Merge(
		config.EnvLayer(getenv),
		flagLayer(cmd),
		config.ArgsLayer(args),
	)

	return config.ResolveGlobal(config.Defaults(), custom, override)
}

// flagLayer returns the explicitly set flags as a layer.
func flagLayer(cmd *cobra.Command) config.Layer {
	flags := cmd.Flags()
	layer := config.Layer{}

	for _, fk := range flagKeys {
		f := flags.Lookup(fk.flag)
		if f == nil || !f.Changed {
			continue
		}

		switch f.Value.Type() {
		case "bool":
			v, _ := flags.GetBool(fk.flag)
			layer[fk.key] = v
		case "int":
			v, _ := flags.GetInt(fk.flag)
			layer[fk.key] = v
		default:
			layer[fk.key] = f.Value.String()
		}
	}

	return layer
}

// parseLevel maps a configured log level onto slog.
// "verbose" is an alias of debug.
func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug", "verbose":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
