// Package cmd implements the tickloop command line.
package cmd

import (
	"context"
	"strings"

	"github.com/joeycumines/go-tickloop/internal/config"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
)

// app is the state shared by the subcommands
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *logiface.Logger[logiface.Event]
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand returns the tickloop command tree, with its own viper
// instance
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "tickloop",
		Short: "Recursive locks and a cooperative update loop",
		Long: `tickloop exercises the recursive lock and update loop packages
interactively: locktest runs scripted lock operations across threads,
and looptest drives a loop of modules from the console.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/tickloop/config.yaml)")
	_ = a.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		newLockTestCommand(a),
		newLoopTestCommand(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	v := a.v

	// Set defaults first so they're available even without a config file
	config.SetDefaults(v)

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("TICKLOOP")
	// e.g., TICKLOOP_LOGGING_LEVEL for logging.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// an explicit config file must exist
		if v.GetString("config") != "" {
			return err
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	w := cmd.ErrOrStderr()
	withStumpy := stumpy.L.WithStumpy(stumpy.WithWriter(w))
	if !cfg.Logging.Timestamps {
		withStumpy = stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``))
	}
	a.logger = stumpy.L.New(
		withStumpy,
		stumpy.L.WithLevel(cfg.Logging.LogLevel()),
	).Logger()

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		a.logger.Debug().Logf(format, args...)
	})); err != nil {
		a.logger.Warning().Err(err).Log("failed to set GOMAXPROCS")
	}

	return nil
}
