package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/khanhnv2901/webinspect/internal/inspect"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string
var verbose bool

// AppContext carries the state built once per invocation and shared by commands.
type AppContext struct {
	Logger    *zap.SugaredLogger
	Config    *CLIConfig
	Inspector *inspect.Inspector
}

type appContextKey struct{}

var globalAppContext *AppContext

var rootCmd = &cobra.Command{
	Use:           "webinspect",
	Short:         "Inspect web endpoints: HTTP status, TLS certificate and page metadata",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".webinspect")
			viper.SetConfigType("yaml")
		}

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if cfgFile != "" || !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}

		applyConfigDefaults(cmd)

		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		appCtx := &AppContext{
			Logger:    l.Sugar(),
			Config:    cliConfig,
			Inspector: newInspector(cliConfig, l),
		}
		storeAppContext(cmd, appCtx)

		appCtx.Logger.Debugw("config_loaded",
			"config_file", viper.ConfigFileUsed(),
			"timeout_secs", cliConfig.Defaults.TimeoutSecs,
			"format", cliConfig.Defaults.Format,
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appCtx := getAppContext(cmd); appCtx != nil && appCtx.Logger != nil {
			_ = appCtx.Logger.Sync()
		}
	},
}

// newLogger writes warnings and errors only, unless verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newInspector(cfg *CLIConfig, logger *zap.Logger) *inspect.Inspector {
	return inspect.New(inspect.Config{
		Logger:    logger,
		Timeout:   cfg.Defaults.Timeout(),
		UserAgent: cfg.Defaults.UserAgent,
	})
}

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if cmd != nil && cmd.Context() != nil {
		if appCtx, ok := cmd.Context().Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("error:"), err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	// config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.webinspect.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging to stderr")

	// add subcommands
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tlsCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
