package inspect

import (
	"net/http"
	"testing"
	"time"
)

func TestRequestOptions_Defaults(t *testing.T) {
	d := RequestOptions("example.com", Options{"path": "/test"})

	if d.Scheme != SchemeHTTP {
		t.Errorf("expected scheme http, got %q", d.Scheme)
	}
	if d.Port != 80 {
		t.Errorf("expected port 80, got %d", d.Port)
	}
	if d.Method != http.MethodGet {
		t.Errorf("expected method GET, got %q", d.Method)
	}
	if d.Hostname != "example.com" {
		t.Errorf("expected hostname example.com, got %q", d.Hostname)
	}
	if d.Path != "/test" {
		t.Errorf("expected path /test, got %q", d.Path)
	}
	if !d.RejectUnauthorized {
		t.Error("expected certificate verification to be on by default")
	}
}

func TestRequestOptions_HTTPSPrefix(t *testing.T) {
	for _, raw := range []string{"https://example.com", "https://example.com/", "https://example.com/a?b=c"} {
		d := RequestOptions(raw, nil)
		if d.Scheme != SchemeHTTPS || d.Port != 443 {
			t.Errorf("RequestOptions(%q) = %s:%d, want https:443", raw, d.Scheme, d.Port)
		}
	}
}

func TestRequestOptions_SchemeOption(t *testing.T) {
	d := RequestOptions("example.com", Options{"scheme": "https"})
	if d.Scheme != SchemeHTTPS || d.Port != 443 {
		t.Fatalf("expected https:443, got %s:%d", d.Scheme, d.Port)
	}

	d = RequestOptions("http://example.com", Options{"protocol": "https:"})
	if d.Scheme != SchemeHTTPS || d.Port != 443 {
		t.Fatalf("expected protocol alias to force https:443, got %s:%d", d.Scheme, d.Port)
	}
}

func TestRequestOptions_PortPrecedence(t *testing.T) {
	d := RequestOptions("http://example.com:8080/", nil)
	if d.Port != 8080 {
		t.Errorf("expected URL port 8080, got %d", d.Port)
	}

	d = RequestOptions("http://example.com:8080/", Options{"port": 9090})
	if d.Port != 9090 {
		t.Errorf("expected option port 9090, got %d", d.Port)
	}

	d = RequestOptions("example.com", Options{"port": float64(8443)})
	if d.Port != 8443 {
		t.Errorf("expected JSON number port 8443, got %d", d.Port)
	}

	d = RequestOptions("example.com", Options{"port": "81"})
	if d.Port != 81 {
		t.Errorf("expected string port 81, got %d", d.Port)
	}
}

func TestRequestOptions_Passthrough(t *testing.T) {
	d := RequestOptions("example.com", Options{
		"method":             "HEAD",
		"host":               "other.example",
		"headers":            map[string]string{"x-trace": "abc"},
		"servername":         "sni.example",
		"rejectUnauthorized": false,
		"timeout":            "2s",
		"family":             4,
		"port":               "not-a-port",
	})

	if d.Method != "HEAD" {
		t.Errorf("expected method HEAD, got %q", d.Method)
	}
	if d.Hostname != "other.example" {
		t.Errorf("expected host alias to set hostname, got %q", d.Hostname)
	}
	if got := d.Headers.Get("X-Trace"); got != "abc" {
		t.Errorf("expected header X-Trace=abc, got %q", got)
	}
	if d.ServerName != "sni.example" {
		t.Errorf("expected servername, got %q", d.ServerName)
	}
	if d.RejectUnauthorized {
		t.Error("expected rejectUnauthorized=false to be applied")
	}
	if d.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %s", d.Timeout)
	}
	if d.Extra["family"] != 4 {
		t.Errorf("expected unknown key in Extra, got %v", d.Extra)
	}
	if d.Extra["port"] != "not-a-port" {
		t.Errorf("expected malformed port kept in Extra, got %v", d.Extra["port"])
	}
	if d.Port != 80 {
		t.Errorf("expected malformed port to leave default 80, got %d", d.Port)
	}
}

func TestRequestOptions_NoValidation(t *testing.T) {
	d := RequestOptions("example.com", Options{"method": "NOT A METHOD", "path": "no-slash"})
	if d.Method != "NOT A METHOD" || d.Path != "no-slash" {
		t.Fatalf("expected values to pass through untouched, got %q %q", d.Method, d.Path)
	}
}

func TestRequestOptions_TimeoutMilliseconds(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{name: "int", value: 1500, want: 1500 * time.Millisecond},
		{name: "json number", value: float64(250), want: 250 * time.Millisecond},
		{name: "numeric string", value: "5000", want: 5 * time.Second},
		{name: "padded numeric string", value: " 750 ", want: 750 * time.Millisecond},
		{name: "duration string", value: "3s", want: 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := RequestOptions("example.com", Options{"timeout": tt.value})
			if d.Timeout != tt.want {
				t.Errorf("expected %s, got %s", tt.want, d.Timeout)
			}
			if _, ok := d.Extra["timeout"]; ok {
				t.Errorf("expected timeout to be applied, found it in Extra: %v", d.Extra)
			}
		})
	}
}

func TestRequestOptions_TimeoutUnparseable(t *testing.T) {
	d := RequestOptions("example.com", Options{"timeout": "soon"})
	if d.Timeout != 0 {
		t.Errorf("expected no timeout, got %s", d.Timeout)
	}
	if d.Extra["timeout"] != "soon" {
		t.Errorf("expected unparseable timeout in Extra, got %v", d.Extra)
	}
}

func TestDescriptor_SummaryAndURL(t *testing.T) {
	d := RequestOptions("http://example.com", nil)
	if got := d.Summary(); got != "GET: http://example.com/" {
		t.Errorf("Summary() = %q", got)
	}
	if got := d.URL(); got != "http://example.com/" {
		t.Errorf("URL() = %q", got)
	}

	d = RequestOptions("https://example.com:8443/x?y=1", nil)
	if got := d.URL(); got != "https://example.com:8443/x?y=1" {
		t.Errorf("URL() = %q", got)
	}
	if got := d.Summary(); got != "GET: https://example.com/x?y=1" {
		t.Errorf("Summary() = %q", got)
	}
	if got := d.Address(); got != "example.com:8443" {
		t.Errorf("Address() = %q", got)
	}
}

func TestMerge(t *testing.T) {
	base := Options{"scheme": "https", "method": "GET"}
	out := merge(base, Options{"method": "HEAD"})
	if out["scheme"] != "https" || out["method"] != "HEAD" {
		t.Fatalf("unexpected merge result %v", out)
	}
	if base["method"] != "GET" {
		t.Fatal("merge must not mutate its inputs")
	}
}
