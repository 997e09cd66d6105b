package inspect

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	errs "github.com/khanhnv2901/webinspect/internal/shared/errors"
)

// TransportError reports a failure to obtain a response or complete a
// handshake. Its message is the underlying network error's message.
type TransportError struct {
	Op   string // "request" or "dial"
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Requester issues exactly one HTTP request per call.
type Requester struct {
	// Timeout bounds connect and the wait for response headers when the
	// descriptor has none. Zero waits forever.
	Timeout   time.Duration
	RootCAs   *x509.CertPool
	UserAgent string
}

// Do sends the request described by d with no body and returns as soon as
// the response headers arrive. Redirects are not followed. The caller owns
// resp.Body and must close it; it has not been read.
func (r *Requester) Do(ctx context.Context, d Descriptor) (*http.Response, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = r.Timeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			ServerName:         d.ServerName,
			InsecureSkipVerify: !d.RejectUnauthorized,
			RootCAs:            r.RootCAs,
		},
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
		DisableCompression:    true,
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := newRequest(ctx, d)
	if err != nil {
		return nil, &TransportError{Op: "request", Addr: d.Address(), Err: err}
	}
	if r.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, &TransportError{Op: "request", Addr: d.Address(), Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Op: "request", Addr: d.Address(), Err: errs.ErrEmptyResponse}
	}

	return resp, nil
}

func newRequest(ctx context.Context, d Descriptor) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, d.Method, d.Scheme+"://"+d.authority()+"/", nil)
	if err != nil {
		return nil, err
	}
	// The path goes on the request line as given.
	if d.Path != "" {
		req.URL.Path = ""
		req.URL.Opaque = d.Path
	}

	if d.Headers != nil {
		req.Header = d.Headers.Clone()
		if h := req.Header.Get("Host"); h != "" {
			req.Host = h
		}
	}

	return req, nil
}
