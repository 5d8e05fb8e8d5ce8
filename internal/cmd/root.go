// Package cmd implements the syt command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/syt-tools/syt/internal/cmd/config"
	"github.com/syt-tools/syt/internal/config"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/logging"
)

// app is the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *logging.Logger
	verbose bool

	stdin   io.Reader
	stdinFD int
}

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// NewRootCmd builds the syt command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{
		v:       viper.New(),
		stdin:   os.Stdin,
		stdinFD: int(os.Stdin.Fd()),
	}

	root := &cobra.Command{
		Use:   "syt",
		Short: "Check entities out of and back into a shared repository",
		Long: `syt keeps collaborators from editing the same part of a project at once.

Checking out a project, folder, or file records who holds it. Nobody else can
check out that entity, anything above it, or anything below it until it is
checked back in. Project administrators can force past existing check-outs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/syt/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")
	flags.StringP("username", "u", "", "repository user name")
	flags.StringP("password", "p", "", "repository password")
	flags.String("repository", "", "repository URL (memory://, file://, postgres://, https://)")
	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("auth.username", flags.Lookup("username"))
	_ = a.v.BindPFlag("auth.password", flags.Lookup("password"))
	_ = a.v.BindPFlag("repository.url", flags.Lookup("repository"))

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(newCheckoutCmd(a), newCheckinCmd(a), newShowCmd(a))
	configcmd.Register(root, a.v)
	return root, a
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	return a.finish(root.ErrOrStderr(), root.ExecuteContext(ctx))
}

// finish reports err on w, logs it and closes the logger. It returns the
// exit code for err.
func (a *app) finish(w io.Writer, err error) int {
	logger := a.logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	defer func() { _ = logger.Close() }()

	if err == nil {
		return syterrors.ExitOK
	}
	err = asUsageError(err)
	code := exitCode(err)

	var usage usageError
	severity := syterrors.GetSeverity(err)
	fields := []any{
		"error", err,
		"exit_code", code,
		"severity", severity.String(),
		"protocol", syterrors.IsProtocolError(err),
		"retryable", syterrors.IsRetryable(err),
	}
	switch {
	case errors.As(err, &usage), syterrors.IsUserFacing(err):
		// The printed message is the whole story.
		logger.Debug("command refused", fields...)
	case severity >= syterrors.SeverityError:
		logger.Error("command failed", fields...)
	default:
		logger.Warn("command failed", fields...)
	}

	color := config.Default().Output.Color
	if a.cfg != nil {
		color = a.cfg.Output.Color
	}
	newPrinter(w, color).Error(err)
	return code
}

// asUsageError marks cobra's unknown command error as a usage error. Flag
// and argument errors are marked where they are raised.
func asUsageError(err error) error {
	var usage usageError
	if err == nil || errors.As(err, &usage) {
		return err
	}
	if strings.HasPrefix(err.Error(), "unknown command ") {
		return usageError{err}
	}
	return err
}

func exitCode(err error) int {
	var usage usageError
	if errors.As(asUsageError(err), &usage) {
		return syterrors.ExitUsage
	}
	return syterrors.ExitCode(err)
}

func (a *app) initConfig(cmd *cobra.Command) error {
	config.ApplyDefaults(a.v)

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(config.ConfigDir())
	}

	a.v.SetEnvPrefix("SYT")
	// SYT_REPOSITORY_URL for repository.url
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	if err := config.BindLegacyEnv(a.v); err != nil {
		return fmt.Errorf("failed to bind environment: %w", err)
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return syterrors.NewValidationError("invalid configuration").WithCause(err)
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	var logger *logging.Logger
	if cfg.Logging.File == "" {
		logger = logging.NewWriterLogger(cmd.ErrOrStderr(), level)
	} else {
		logger, err = logging.NewLogger(cfg.Logging.File, level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return err
		}
	}
	a.logger = logger.WithCommand(cmd.Name())
	a.logger.Debug("configuration loaded", "config_file", a.v.ConfigFileUsed(), "repository", cfg.Repository.URL)
	return nil
}

// maxArgs is cobra.MaximumNArgs reported as a usage error.
func maxArgs(n int) cobra.PositionalArgs {
	check := cobra.MaximumNArgs(n)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
