package inspect

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// Config configures an Inspector.
type Config struct {
	Logger *zap.Logger
	// Timeout applies to calls whose options carry no timeout. Zero means
	// an unresponsive endpoint hangs the call until ctx ends.
	Timeout   time.Duration
	RootCAs   *x509.CertPool
	UserAgent string
}

// Inspector runs status, tls and meta inspections. Each call opens exactly one
// connection and shares no state with other calls.
type Inspector struct {
	logger    *zap.Logger
	requester *Requester
	tls       *TLSInspector
}

// New builds an Inspector from cfg.
func New(cfg Config) *Inspector {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{
		logger: logger,
		requester: &Requester{
			Timeout:   cfg.Timeout,
			RootCAs:   cfg.RootCAs,
			UserAgent: cfg.UserAgent,
		},
		tls: &TLSInspector{
			Timeout: cfg.Timeout,
			RootCAs: cfg.RootCAs,
		},
	}
}

var defaultInspector = New(Config{})

// Status inspects rawURL with a default Inspector.
func Status(ctx context.Context, rawURL string, opts Options) *Future[StatusResult] {
	return defaultInspector.Status(ctx, rawURL, opts)
}

// TLS inspects rawURL with a default Inspector.
func TLS(ctx context.Context, rawURL string, opts Options) *Future[TLSResult] {
	return defaultInspector.TLS(ctx, rawURL, opts)
}

// Meta inspects rawURL with a default Inspector.
func Meta(ctx context.Context, rawURL string, opts Options) *Future[MetaResult] {
	return defaultInspector.Meta(ctx, rawURL, opts)
}

// Status sends one request and reports the response status line and headers.
func (i *Inspector) Status(ctx context.Context, rawURL string, opts Options) *Future[StatusResult] {
	return runFuture(ctx, i.statusOp(rawURL, opts))
}

// StatusCallback is Status delivered through cb instead of a Future.
func (i *Inspector) StatusCallback(ctx context.Context, rawURL string, opts Options, cb Callback[StatusResult]) {
	runCallback(ctx, i.statusOp(rawURL, opts), cb)
}

// TLS performs a handshake and reports the peer certificate.
func (i *Inspector) TLS(ctx context.Context, rawURL string, opts Options) *Future[TLSResult] {
	return runFuture(ctx, i.tlsOp(rawURL, opts))
}

// TLSCallback is TLS delivered through cb instead of a Future.
func (i *Inspector) TLSCallback(ctx context.Context, rawURL string, opts Options, cb Callback[TLSResult]) {
	runCallback(ctx, i.tlsOp(rawURL, opts), cb)
}

// Meta fetches the document and reports its title, charset, keywords and
// description.
func (i *Inspector) Meta(ctx context.Context, rawURL string, opts Options) *Future[MetaResult] {
	return runFuture(ctx, i.metaOp(rawURL, opts))
}

// MetaCallback is Meta delivered through cb instead of a Future.
func (i *Inspector) MetaCallback(ctx context.Context, rawURL string, opts Options, cb Callback[MetaResult]) {
	runCallback(ctx, i.metaOp(rawURL, opts), cb)
}

func (i *Inspector) statusOp(rawURL string, opts Options) operation[StatusResult] {
	return func(ctx context.Context) (*StatusResult, error) {
		d := RequestOptions(rawURL, opts)
		start := i.begin("status", d)

		resp, err := i.requester.Do(ctx, d)
		if err != nil {
			return nil, i.fail("status", d, start, err)
		}
		defer resp.Body.Close()

		result := ShapeStatus(d, resp)
		i.finish("status", d, start, zap.Int("status_code", result.StatusCode))
		return &result, nil
	}
}

func (i *Inspector) tlsOp(rawURL string, opts Options) operation[TLSResult] {
	return func(ctx context.Context) (*TLSResult, error) {
		d := tlsDescriptor(rawURL, opts)
		start := i.begin("tls", d)

		ins, err := i.tls.Inspect(ctx, d)
		if err != nil {
			return nil, i.fail("tls", d, start, err)
		}

		result := ShapeTLS(ins.Certificate)
		i.finish("tls", d, start,
			zap.Bool("authorized", ins.Authorized),
			zap.Int("san_count", len(result.SubjectAltNames)),
		)
		return &result, nil
	}
}

func (i *Inspector) metaOp(rawURL string, opts Options) operation[MetaResult] {
	return func(ctx context.Context) (*MetaResult, error) {
		d := RequestOptions(rawURL, opts)
		start := i.begin("meta", d)

		resp, err := i.requester.Do(ctx, d)
		if err != nil {
			return nil, i.fail("meta", d, start, err)
		}
		defer resp.Body.Close()

		body, err := readBody(resp.Body, resp.Header.Get("Content-Type"))
		if err != nil {
			return nil, i.fail("meta", d, start, err)
		}

		result := ShapeMeta(body)
		i.finish("meta", d, start, zap.Int("body_bytes", len(body)))
		return &result, nil
	}
}

// tlsDescriptor defaults the scheme to https and drops the HTTP method.
func tlsDescriptor(rawURL string, opts Options) Descriptor {
	d := RequestOptions(rawURL, merge(Options{"scheme": SchemeHTTPS}, opts))
	d.Method = ""
	return d
}

// readBody drains r completely, decoding it to UTF-8 according to the
// Content-Type header or the document's own charset declaration.
func readBody(r io.Reader, contentType string) (string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (i *Inspector) begin(op string, d Descriptor) time.Time {
	i.logger.Debug("inspect_start",
		zap.String("op", op),
		zap.String("url", d.URL()),
		zap.Bool("reject_unauthorized", d.RejectUnauthorized),
	)
	return time.Now()
}

func (i *Inspector) finish(op string, d Descriptor, start time.Time, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("op", op),
		zap.String("url", d.URL()),
		zap.Duration("duration", time.Since(start)),
	}, fields...)
	i.logger.Info("inspect_done", fields...)
}

func (i *Inspector) fail(op string, d Descriptor, start time.Time, err error) error {
	i.logger.Warn("inspect_failed",
		zap.String("op", op),
		zap.String("url", d.URL()),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}
