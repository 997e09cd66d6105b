package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khanhnv2901/webinspect/internal/api"
	"github.com/khanhnv2901/webinspect/internal/shared/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	AuthToken       string
	CORSOrigins     []string
	TrustedProxies  []string
	ShutdownTimeout time.Duration
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run webinspect as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)

		// The server always logs requests, independent of --verbose.
		logger, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() {
			if err := logger.Sync(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
			}
		}()

		apiServer := newAPIServer(appCtx, serveOpts, logger)
		defer apiServer.Close()

		httpServer := newHTTPServer(appCtx.Config.Serve.Addr, apiServer)
		out := cmd.OutOrStdout()

		// Channel to listen for errors from the server
		serverErrors := make(chan error, 1)

		// Start server in a goroutine
		go func() {
			fmt.Fprintf(out, "%s API server listening on %s\n", colorInfo("→"), httpServer.Addr)
			fmt.Fprintf(out, "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		// Channel to listen for interrupt signals
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		// Block until we receive a signal or an error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Fprintf(out, "\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			// Create context with timeout for shutdown
			ctx, cancel := context.WithTimeout(context.Background(), serveOpts.ShutdownTimeout)
			defer cancel()

			// Attempt graceful shutdown
			if err := httpServer.Shutdown(ctx); err != nil {
				// Force close if graceful shutdown fails
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Fprintf(out, "%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func newAPIServer(appCtx *AppContext, opts serveOptions, logger *zap.Logger) *api.Server {
	return api.NewServer(api.Config{
		Inspector:   newInspector(appCtx.Config, logger),
		Version:     Version,
		AuthToken:   opts.AuthToken,
		Logger:      logger,
		CORSOrigins: opts.CORSOrigins,
		RateLimit:   appCtx.Config.Serve.RateLimit,
		RateBurst:   appCtx.Config.Serve.RateBurst,

		TrustedProxies: opts.TrustedProxies,
	})
}

// newHTTPServer bounds the write timeout by the slowest inspection the
// configured timeout allows.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	writeTimeout := 30 * time.Second
	if t := cliConfig.Defaults.Timeout(); t > 0 && t+5*time.Second > writeTimeout {
		writeTimeout = t + 5*time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

func init() {
	serveCmd.Flags().StringVar(&cliConfig.Serve.Addr, "addr", cliConfig.Serve.Addr, "Address for the API server")
	serveCmd.Flags().StringVar(&serveOpts.AuthToken, "auth-token", "", "Optional shared secret for API requests")
	serveCmd.Flags().DurationVar(&serveOpts.ShutdownTimeout, "shutdown-timeout", constants.DefaultShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().StringSliceVar(&serveOpts.CORSOrigins, "cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().StringSliceVar(&serveOpts.TrustedProxies, "trusted-proxies", []string{}, "Proxy IPs or CIDRs whose X-Forwarded-For is honored for rate limiting")
	serveCmd.Flags().IntVar(&cliConfig.Serve.RateLimit, "rate-limit", cliConfig.Serve.RateLimit, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().IntVar(&cliConfig.Serve.RateBurst, "rate-burst", cliConfig.Serve.RateBurst, "Rate limit burst size")
	serveCmd.Flags().IntVar(&cliConfig.Defaults.TimeoutSecs, "timeout", cliConfig.Defaults.TimeoutSecs, "Per-inspection timeout in seconds (0 = none)")
}
