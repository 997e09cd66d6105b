package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestApplyIntDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("timeout", 0, "")

	var applied int
	applyIntDefault(flags, "timeout", 15, func(v int) {
		applied = v
	})
	if applied != 15 {
		t.Fatalf("expected setter to receive 15, got %d", applied)
	}

	// When flag already set, setter should not run.
	if err := flags.Set("timeout", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	applied = 0
	applyIntDefault(flags, "timeout", 20, func(v int) {
		applied = v
	})
	if applied != 0 {
		t.Fatalf("setter should not run when flag overridden, got %d", applied)
	}
}

func TestApplyBoolDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("insecure", false, "")

	applied := false
	applyBoolDefault(flags, "insecure", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatal("expected setter to run with true")
	}

	if err := flags.Set("insecure", "false"); err != nil {
		t.Fatalf("failed to set bool flag: %v", err)
	}
	applied = true
	applyBoolDefault(flags, "insecure", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatalf("setter should not change value when flag already set")
	}
}

func TestApplyStringDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("format", "json", "")

	got := ""
	applyStringDefault(flags, "format", "yaml", func(v string) { got = v })
	if got != "yaml" {
		t.Fatalf("expected yaml default to apply, got %q", got)
	}

	if err := flags.Set("format", "text"); err != nil {
		t.Fatalf("failed to set format: %v", err)
	}
	got = ""
	applyStringDefault(flags, "format", "yaml", func(v string) { got = v })
	if got != "" {
		t.Fatalf("expected explicit flag to win, setter ran with %q", got)
	}

	// Unknown flags still receive the config value.
	applyStringDefault(flags, "missing", "value", func(v string) { got = v })
	if got != "value" {
		t.Fatalf("expected setter for unknown flag, got %q", got)
	}
}

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	if cfg.Defaults.TimeoutSecs != defaultTimeoutSeconds {
		t.Fatalf("unexpected timeout default: %d", cfg.Defaults.TimeoutSecs)
	}
	if cfg.Defaults.Format != "json" {
		t.Fatalf("unexpected format default: %s", cfg.Defaults.Format)
	}
	if cfg.Defaults.Insecure {
		t.Fatal("expected certificate verification by default")
	}
	if cfg.Serve.Addr != defaultServeAddr {
		t.Fatalf("unexpected serve addr: %s", cfg.Serve.Addr)
	}
	if cfg.Serve.RateLimit != defaultRateLimit || cfg.Serve.RateBurst != defaultRateBurst {
		t.Fatalf("unexpected rate limit defaults: %d/%d", cfg.Serve.RateLimit, cfg.Serve.RateBurst)
	}
}

func TestDefaultValuesTimeout(t *testing.T) {
	tests := []struct {
		secs int
		want time.Duration
	}{
		{secs: 10, want: 10 * time.Second},
		{secs: 0, want: 0},
		{secs: -5, want: 0},
	}
	for _, tt := range tests {
		if got := (DefaultValues{TimeoutSecs: tt.secs}).Timeout(); got != tt.want {
			t.Errorf("Timeout() with %d secs = %v, want %v", tt.secs, got, tt.want)
		}
	}
}

func TestLoadDefaultOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("defaults.timeout_secs", 45)
	viper.Set("defaults.format", "yaml")
	viper.Set("defaults.insecure", true)
	viper.Set("defaults.user_agent", "inspector/1.0")
	viper.Set("serve.addr", "0.0.0.0:9000")
	viper.Set("serve.rate_limit", 3)
	viper.Set("serve.rate_burst", 6)

	overrides := loadDefaultOverrides()

	if overrides.TimeoutSecs == nil || *overrides.TimeoutSecs != 45 {
		t.Fatalf("expected timeout override 45, got %+v", overrides.TimeoutSecs)
	}
	if overrides.Format != "yaml" {
		t.Fatalf("expected format override yaml, got %s", overrides.Format)
	}
	if overrides.Insecure == nil || !*overrides.Insecure {
		t.Fatalf("expected insecure override true, got %+v", overrides.Insecure)
	}
	if overrides.UserAgent != "inspector/1.0" {
		t.Fatalf("expected user agent override, got %s", overrides.UserAgent)
	}
	if overrides.ServeAddr != "0.0.0.0:9000" {
		t.Fatalf("expected serve addr override, got %s", overrides.ServeAddr)
	}
	if overrides.RateLimit == nil || *overrides.RateLimit != 3 || overrides.RateBurst == nil || *overrides.RateBurst != 6 {
		t.Fatalf("expected rate overrides 3/6, got %+v/%+v", overrides.RateLimit, overrides.RateBurst)
	}
}

func TestLoadDefaultOverridesEmpty(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	overrides := loadDefaultOverrides()
	if overrides.TimeoutSecs != nil || overrides.Insecure != nil || overrides.Format != "" {
		t.Fatalf("expected no overrides, got %+v", overrides)
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		*cliConfig = *newCLIConfig()
	})

	*cliConfig = *newCLIConfig()

	viper.Set("defaults.timeout_secs", 20)
	viper.Set("defaults.format", "text")
	viper.Set("defaults.insecure", true)
	viper.Set("defaults.user_agent", "cfg-agent")
	viper.Set("serve.rate_limit", 2)

	testCmd := &cobra.Command{Use: "status"}
	testCmd.Flags().IntVar(&cliConfig.Defaults.TimeoutSecs, "timeout", cliConfig.Defaults.TimeoutSecs, "")
	testCmd.Flags().StringVar(&cliConfig.Defaults.Format, "format", cliConfig.Defaults.Format, "")
	testCmd.Flags().BoolVar(&cliConfig.Defaults.Insecure, "insecure", false, "")

	// Simulate the user passing --format explicitly.
	if err := testCmd.Flags().Set("format", "yaml"); err != nil {
		t.Fatalf("failed to set format: %v", err)
	}

	applyConfigDefaults(testCmd)

	if cliConfig.Defaults.TimeoutSecs != 20 {
		t.Fatalf("expected timeout default to update to 20, got %d", cliConfig.Defaults.TimeoutSecs)
	}
	if cliConfig.Defaults.Format != "yaml" {
		t.Fatalf("expected explicit format flag to win, got %s", cliConfig.Defaults.Format)
	}
	if !cliConfig.Defaults.Insecure {
		t.Fatal("expected insecure default from config")
	}
	if cliConfig.Defaults.UserAgent != "cfg-agent" {
		t.Fatalf("expected user agent from config, got %s", cliConfig.Defaults.UserAgent)
	}
	if cliConfig.Serve.RateLimit != 2 {
		t.Fatalf("expected rate limit from config, got %d", cliConfig.Serve.RateLimit)
	}
}
