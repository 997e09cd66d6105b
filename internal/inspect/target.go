package inspect

import (
	"net/url"
	"regexp"
	"strings"
)

// Supported transports.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

var schemePrefix = regexp.MustCompile(`(?i)^(https?)://`)

// URLInfo is the structured breakdown of an inspection target.
type URLInfo struct {
	Scheme   string     // http or https, never empty
	Host     string     // host[:port] as written
	Hostname string     // host without port
	Port     string     // explicit port, empty when absent
	Pathname string     // escaped path, "/" when absent
	RawQuery string     // query without the leading "?"
	Query    url.Values // parsed query
}

// RequestPath returns the path plus query as it goes on the request line.
func (u URLInfo) RequestPath() string {
	if u.RawQuery == "" {
		return u.Pathname
	}
	return u.Pathname + "?" + u.RawQuery
}

// ParseURL normalizes a target into URLInfo. It accepts:
//   - example.com
//   - example.com:8080/path
//   - http://example.com
//   - https://example.com:443/path?q=1
//
// Inputs without an http:// or https:// marker get defaultScheme prepended
// (http when defaultScheme is empty or unsupported). Parsing never fails: an
// unusable target yields an empty hostname and the transport reports it.
func ParseURL(raw, defaultScheme string) URLInfo {
	defaultScheme = normalizeScheme(defaultScheme)
	if !IsSupportedScheme(defaultScheme) {
		defaultScheme = SchemeHTTP
	}

	raw = strings.TrimSpace(raw)
	scheme := defaultScheme
	request := raw
	if m := schemePrefix.FindStringSubmatch(raw); m != nil {
		scheme = strings.ToLower(m[1])
	} else {
		request = defaultScheme + "://" + raw
	}

	info := URLInfo{
		Scheme:   scheme,
		Pathname: "/",
		Query:    url.Values{},
	}

	parsed, err := url.Parse(request)
	if err != nil {
		return info
	}

	if s := normalizeScheme(parsed.Scheme); IsSupportedScheme(s) {
		info.Scheme = s
	}
	info.Host = parsed.Host
	info.Hostname = parsed.Hostname()
	info.Port = parsed.Port()
	if p := parsed.EscapedPath(); p != "" {
		info.Pathname = p
	}
	info.RawQuery = parsed.RawQuery
	info.Query = parsed.Query()

	return info
}

// IsSupportedScheme reports whether scheme is one of the inspectable transports.
func IsSupportedScheme(scheme string) bool {
	return scheme == SchemeHTTP || scheme == SchemeHTTPS
}

// DefaultPort returns the well-known port for scheme, or 0 when unsupported.
func DefaultPort(scheme string) int {
	switch normalizeScheme(scheme) {
	case SchemeHTTP:
		return 80
	case SchemeHTTPS:
		return 443
	}
	return 0
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(scheme), ":"))
}
