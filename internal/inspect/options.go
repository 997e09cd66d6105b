package inspect

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Options are caller overrides merged over the defaults derived from the URL.
// Recognized keys are applied to the Descriptor; anything else, and any
// recognized key whose value has an unexpected type, is kept in Extra.
//
// Recognized keys: scheme (alias protocol), port, method, hostname (alias
// host), path, headers, servername, rejectUnauthorized, timeout.
type Options map[string]any

// Descriptor is a concrete request built from a URL and Options.
type Descriptor struct {
	Scheme             string
	Port               int
	Method             string
	Hostname           string
	Path               string
	Headers            http.Header
	ServerName         string
	RejectUnauthorized bool
	Timeout            time.Duration
	Extra              map[string]any
}

// Address returns hostname:port for dialing.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Hostname, strconv.Itoa(d.Port))
}

// URL renders the descriptor as an absolute URL.
func (d Descriptor) URL() string {
	return d.Scheme + "://" + d.authority() + d.Path
}

// authority is the URL host, carrying the port only when it differs from the
// scheme default.
func (d Descriptor) authority() string {
	if d.Port != 0 && d.Port != DefaultPort(d.Scheme) {
		return d.Address()
	}
	if strings.Contains(d.Hostname, ":") {
		return "[" + d.Hostname + "]"
	}
	return d.Hostname
}

// Summary is the one-line request echo, e.g. "GET: http://example.com/".
func (d Descriptor) Summary() string {
	return fmt.Sprintf("%s: %s://%s%s", d.Method, d.Scheme, d.Hostname, d.Path)
}

// RequestOptions normalizes rawURL and merges opts over the defaults. The
// default scheme is http unless opts asks for https. The port follows the
// URL when it carries one, otherwise the (possibly overridden) scheme. No
// validation is performed; invalid methods or paths fail in the transport.
func RequestOptions(rawURL string, opts Options) Descriptor {
	defaultScheme := SchemeHTTP
	if s, ok := opts.scheme(); ok && s == SchemeHTTPS {
		defaultScheme = SchemeHTTPS
	}

	info := ParseURL(rawURL, defaultScheme)
	d := Descriptor{
		Scheme:             info.Scheme,
		Method:             http.MethodGet,
		Hostname:           info.Hostname,
		Path:               info.RequestPath(),
		RejectUnauthorized: true,
	}

	explicitPort := false
	if info.Port != "" {
		if p, err := strconv.Atoi(info.Port); err == nil {
			d.Port = p
			explicitPort = true
		}
	}

	if d.apply(opts) {
		explicitPort = true
	}
	if !explicitPort {
		d.Port = DefaultPort(d.Scheme)
	}

	return d
}

// merge returns a new Options with over applied key for key on top of base.
func merge(base, over Options) Options {
	out := make(Options, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (o Options) scheme() (string, bool) {
	for _, key := range []string{"scheme", "protocol"} {
		if v, ok := o[key].(string); ok {
			return normalizeScheme(v), true
		}
	}
	return "", false
}

// apply merges opts into d and reports whether a port was set explicitly.
func (d *Descriptor) apply(opts Options) bool {
	portSet := false
	for key, value := range opts {
		applied := true
		switch key {
		case "scheme", "protocol":
			s, ok := value.(string)
			if ok && IsSupportedScheme(normalizeScheme(s)) {
				d.Scheme = normalizeScheme(s)
			} else {
				applied = false
			}
		case "port":
			if p, ok := toInt(value); ok {
				d.Port = p
				portSet = true
			} else {
				applied = false
			}
		case "method":
			applied = setString(&d.Method, value)
		case "hostname", "host":
			applied = setString(&d.Hostname, value)
		case "path":
			applied = setString(&d.Path, value)
		case "servername":
			applied = setString(&d.ServerName, value)
		case "headers":
			if h, ok := toHeader(value); ok {
				d.Headers = h
			} else {
				applied = false
			}
		case "rejectUnauthorized":
			if b, ok := toBool(value); ok {
				d.RejectUnauthorized = b
			} else {
				applied = false
			}
		case "timeout":
			if t, ok := toDuration(value); ok {
				d.Timeout = t
			} else {
				applied = false
			}
		default:
			applied = false
		}

		if !applied {
			if d.Extra == nil {
				d.Extra = make(map[string]any)
			}
			d.Extra[key] = value
		}
	}
	return portSet
}

func setString(dst *string, v any) bool {
	s, ok := v.(string)
	if ok {
		*dst = s
	}
	return ok
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint16:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		p, err := strconv.Atoi(strings.TrimSpace(n))
		return p, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}

// toDuration accepts a time.Duration, a Go duration string, or a number of
// milliseconds (numeric strings included).
func toDuration(v any) (time.Duration, bool) {
	switch t := v.(type) {
	case time.Duration:
		return t, true
	case string:
		if parsed, err := time.ParseDuration(strings.TrimSpace(t)); err == nil {
			return parsed, true
		}
	}
	if ms, ok := toInt(v); ok {
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}

func toHeader(v any) (http.Header, bool) {
	h := http.Header{}
	switch m := v.(type) {
	case http.Header:
		return m.Clone(), true
	case map[string][]string:
		for k, vals := range m {
			for _, val := range vals {
				h.Add(k, val)
			}
		}
	case map[string]string:
		for k, val := range m {
			h.Set(k, val)
		}
	case map[string]any:
		for k, raw := range m {
			switch val := raw.(type) {
			case string:
				h.Set(k, val)
			case []string:
				for _, s := range val {
					h.Add(k, s)
				}
			case []any:
				for _, s := range val {
					h.Add(k, fmt.Sprint(s))
				}
			default:
				h.Set(k, fmt.Sprint(val))
			}
		}
	default:
		return nil, false
	}
	return h, true
}
