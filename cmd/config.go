package cmd

import (
	"time"

	"github.com/khanhnv2901/webinspect/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultTimeoutSeconds = int(constants.DefaultCLITimeout / time.Second)
	defaultFormat         = formatJSON
	defaultServeAddr      = "127.0.0.1:8080"
	defaultRateLimit      = 10
	defaultRateBurst      = 20
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Serve    ServeConfig
}

// DefaultValues apply to every inspection command.
type DefaultValues struct {
	TimeoutSecs int
	Format      string
	Insecure    bool
	UserAgent   string
	// OutputDir confines --output files when set.
	OutputDir string
}

// Timeout converts TimeoutSecs; zero or negative means no timeout.
func (d DefaultValues) Timeout() time.Duration {
	if d.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(d.TimeoutSecs) * time.Second
}

// ServeConfig holds the REST server settings that may come from the config file.
type ServeConfig struct {
	Addr      string
	RateLimit int
	RateBurst int
}

type defaultOverrides struct {
	TimeoutSecs *int
	Format      string
	Insecure    *bool
	UserAgent   string
	OutputDir   string
	ServeAddr   string
	RateLimit   *int
	RateBurst   *int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			TimeoutSecs: defaultTimeoutSeconds,
			Format:      string(defaultFormat),
		},
		Serve: ServeConfig{
			Addr:      defaultServeAddr,
			RateLimit: defaultRateLimit,
			RateBurst: defaultRateBurst,
		},
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.timeout_secs") {
		val := viper.GetInt("defaults.timeout_secs")
		overrides.TimeoutSecs = &val
	}

	if viper.IsSet("defaults.format") {
		overrides.Format = viper.GetString("defaults.format")
	}

	if viper.IsSet("defaults.insecure") {
		val := viper.GetBool("defaults.insecure")
		overrides.Insecure = &val
	}

	if viper.IsSet("defaults.user_agent") {
		overrides.UserAgent = viper.GetString("defaults.user_agent")
	}

	if viper.IsSet("defaults.output_dir") {
		overrides.OutputDir = viper.GetString("defaults.output_dir")
	}

	if viper.IsSet("serve.addr") {
		overrides.ServeAddr = viper.GetString("serve.addr")
	}

	if viper.IsSet("serve.rate_limit") {
		val := viper.GetInt("serve.rate_limit")
		overrides.RateLimit = &val
	}

	if viper.IsSet("serve.rate_burst") {
		val := viper.GetInt("serve.rate_burst")
		overrides.RateBurst = &val
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config when the user
// did not explicitly override the corresponding flag on cmd.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	flags := cmd.Flags()

	if overrides.TimeoutSecs != nil {
		applyIntDefault(flags, "timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Defaults.TimeoutSecs = v
		})
	}

	if overrides.Format != "" {
		applyStringDefault(flags, "format", overrides.Format, func(v string) {
			cliConfig.Defaults.Format = v
		})
	}

	if overrides.Insecure != nil {
		applyBoolDefault(flags, "insecure", *overrides.Insecure, func(v bool) {
			cliConfig.Defaults.Insecure = v
		})
	}

	if overrides.UserAgent != "" {
		cliConfig.Defaults.UserAgent = overrides.UserAgent
	}

	if overrides.OutputDir != "" {
		cliConfig.Defaults.OutputDir = overrides.OutputDir
	}

	if overrides.ServeAddr != "" {
		applyStringDefault(flags, "addr", overrides.ServeAddr, func(v string) {
			cliConfig.Serve.Addr = v
		})
	}

	if overrides.RateLimit != nil {
		applyIntDefault(flags, "rate-limit", *overrides.RateLimit, func(v int) {
			cliConfig.Serve.RateLimit = v
		})
	}

	if overrides.RateBurst != nil {
		applyIntDefault(flags, "rate-burst", *overrides.RateBurst, func(v int) {
			cliConfig.Serve.RateBurst = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
