package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/khanhnv2901/webinspect/internal/inspect"
	"github.com/khanhnv2901/webinspect/internal/shared/constants"
	errs "github.com/khanhnv2901/webinspect/internal/shared/errors"
	"github.com/khanhnv2901/webinspect/internal/shared/security"
	"github.com/spf13/cobra"
)

// inspectFlags are shared by status, tls and meta. Only one of them runs per
// invocation.
type inspectFlags struct {
	Method     string
	Path       string
	Headers    []string
	ServerName string
	Callback   bool
	Output     string
}

var inspectOpts inspectFlags

var statusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Send one request and print the response status line and headers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ins := getAppContext(cmd).Inspector
		return runInspection(cmd, "status", args[0], ins.Status, ins.StatusCallback)
	},
}

var tlsCmd = &cobra.Command{
	Use:   "tls <url>",
	Short: "Perform a TLS handshake and print the peer certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ins := getAppContext(cmd).Inspector
		return runInspection(cmd, "tls", args[0], ins.TLS, ins.TLSCallback)
	},
}

var metaCmd = &cobra.Command{
	Use:   "meta <url>",
	Short: "Fetch a page and print its title, charset, keywords and description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ins := getAppContext(cmd).Inspector
		return runInspection(cmd, "meta", args[0], ins.Meta, ins.MetaCallback)
	},
}

type futureFunc[T any] func(ctx context.Context, rawURL string, opts inspect.Options) *inspect.Future[T]

type callbackFunc[T any] func(ctx context.Context, rawURL string, opts inspect.Options, cb inspect.Callback[T])

func runInspection[T any](cmd *cobra.Command, op, rawURL string, asFuture futureFunc[T], asCallback callbackFunc[T]) error {
	format, err := parseFormat(cliConfig.Defaults.Format)
	if err != nil {
		return err
	}
	opts, err := buildInspectOptions(inspectOpts, cliConfig.Defaults)
	if err != nil {
		return err
	}
	outputPath := ""
	if inspectOpts.Output != "" {
		if outputPath, err = resolveOutputPath(cliConfig.Defaults.OutputDir, inspectOpts.Output); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result *T
		errMsg string
	)
	if inspectOpts.Callback {
		result, errMsg = awaitCallback(ctx, rawURL, opts, asCallback)
	} else {
		var awaitErr error
		result, awaitErr = asFuture(ctx, rawURL, opts).Await(ctx)
		if awaitErr != nil {
			errMsg = awaitErr.Error()
		}
	}
	if errMsg != "" {
		return &InspectionFailedError{Op: op, Target: rawURL, Message: errMsg}
	}

	if outputPath == "" {
		return renderResult(cmd.OutOrStdout(), format, result)
	}
	return writeResultFile(outputPath, format, result)
}

// resolveOutputPath keeps output files inside dir when one is configured.
func resolveOutputPath(dir, path string) (string, error) {
	if dir != "" {
		return security.ResolveWithin(dir, path)
	}
	return security.CleanOutputPath(path)
}

func writeResultFile(path string, format outputFormat, result any) error {
	var buf bytes.Buffer
	if err := renderResult(&buf, format, result); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// awaitCallback drives the callback delivery form and blocks until it fires.
func awaitCallback[T any](ctx context.Context, rawURL string, opts inspect.Options, call callbackFunc[T]) (*T, string) {
	type delivery struct {
		result *T
		errMsg string
	}
	ch := make(chan delivery, 1)
	call(ctx, rawURL, opts, func(result *T, errMsg string) {
		ch <- delivery{result: result, errMsg: errMsg}
	})
	select {
	case d := <-ch:
		return d.result, d.errMsg
	case <-ctx.Done():
		return nil, ctx.Err().Error()
	}
}

// buildInspectOptions turns command flags into inspection options. Only flags
// that carry a value produce an option.
func buildInspectOptions(flags inspectFlags, defaults DefaultValues) (inspect.Options, error) {
	opts := inspect.Options{}
	if flags.Method != "" {
		opts["method"] = strings.ToUpper(flags.Method)
	}
	if flags.Path != "" {
		opts["path"] = flags.Path
	}
	if flags.ServerName != "" {
		opts["servername"] = flags.ServerName
	}
	if defaults.Insecure {
		opts["rejectUnauthorized"] = false
	}
	if len(flags.Headers) > 0 {
		headers, err := parseHeaders(flags.Headers)
		if err != nil {
			return nil, err
		}
		opts["headers"] = headers
	}
	return opts, nil
}

// parseHeaders accepts "Name: value" pairs.
func parseHeaders(raw []string) (http.Header, error) {
	headers := http.Header{}
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: header %q must look like \"Name: value\"", errs.ErrInvalidInput, entry)
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers, nil
}

func addInspectFlags(c *cobra.Command, withRequest bool) {
	flags := c.Flags()
	if withRequest {
		flags.StringVar(&inspectOpts.Method, "method", "", "HTTP method (default GET)")
		flags.StringVar(&inspectOpts.Path, "path", "", "request path, overrides the URL path")
		flags.StringArrayVarP(&inspectOpts.Headers, "header", "H", nil, "extra request header \"Name: value\" (repeatable)")
	}
	flags.StringVar(&inspectOpts.ServerName, "servername", "", "TLS server name (SNI) to present")
	flags.BoolVar(&cliConfig.Defaults.Insecure, "insecure", cliConfig.Defaults.Insecure, "do not fail on untrusted certificates")
	flags.IntVar(&cliConfig.Defaults.TimeoutSecs, "timeout", cliConfig.Defaults.TimeoutSecs, "timeout in seconds (0 = none)")
	flags.StringVar(&cliConfig.Defaults.Format, "format", cliConfig.Defaults.Format, "output format: json, yaml or text")
	flags.BoolVar(&inspectOpts.Callback, "callback", false, "deliver the result through the callback form")
	flags.StringVarP(&inspectOpts.Output, "output", "o", "", "write the result to a file instead of stdout")
}

func init() {
	addInspectFlags(statusCmd, true)
	addInspectFlags(tlsCmd, false)
	addInspectFlags(metaCmd, true)
}
