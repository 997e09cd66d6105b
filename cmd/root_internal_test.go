package cmd

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func TestStoreAndGetAppContext(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	cmd := &cobra.Command{Use: "root"}
	appCtx := &AppContext{Config: newCLIConfig()}

	storeAppContext(cmd, appCtx)

	if got := getAppContext(cmd); got != appCtx {
		t.Fatalf("expected stored app context to be returned")
	}
	if got := cmd.Context().Value(appContextKey{}); got != appCtx {
		t.Fatalf("expected app context on the command context")
	}
}

func TestGetAppContextFallsBackToGlobal(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	appCtx := &AppContext{}
	globalAppContext = appCtx

	cmd := &cobra.Command{Use: "bare"}
	cmd.SetContext(context.Background())
	if got := getAppContext(cmd); got != appCtx {
		t.Fatalf("expected global app context")
	}
	if got := getAppContext(nil); got != appCtx {
		t.Fatalf("expected global app context for nil command")
	}
}

func TestNewLogger(t *testing.T) {
	quiet, err := newLogger(false)
	if err != nil {
		t.Fatalf("newLogger(false): %v", err)
	}
	if quiet.Core().Enabled(zapcore.DebugLevel) || quiet.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected debug and info to be disabled without verbose")
	}

	loud, err := newLogger(true)
	if err != nil {
		t.Fatalf("newLogger(true): %v", err)
	}
	if !loud.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug logging with verbose")
	}
}

func TestNewInspectorUsesConfig(t *testing.T) {
	cfg := newCLIConfig()
	if ins := newInspector(cfg, nil); ins == nil {
		t.Fatal("expected inspector")
	}
}
