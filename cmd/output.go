package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/khanhnv2901/webinspect/internal/inspect"
	errs "github.com/khanhnv2901/webinspect/internal/shared/errors"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
	formatText outputFormat = "text"
)

func parseFormat(value string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case formatJSON, formatYAML, formatText:
		return f, nil
	case "yml":
		return formatYAML, nil
	case "":
		return defaultFormat, nil
	}
	return "", fmt.Errorf("%w: %q (use json, yaml or text)", errs.ErrUnsupportedFormat, value)
}

func renderResult(w io.Writer, format outputFormat, result any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case formatText:
		return renderText(w, result)
	}
	return fmt.Errorf("%w: %q", errs.ErrUnsupportedFormat, format)
}

func renderText(w io.Writer, result any) error {
	switch r := result.(type) {
	case *inspect.StatusResult:
		renderStatusText(w, r)
	case *inspect.TLSResult:
		renderTLSText(w, r)
	case *inspect.MetaResult:
		renderMetaText(w, r)
	default:
		return fmt.Errorf("%w: no text layout for %T", errs.ErrUnsupportedFormat, result)
	}
	return nil
}

func renderStatusText(w io.Writer, r *inspect.StatusResult) {
	fmt.Fprintf(w, "%s\n", colorInfo(r.Request))
	fmt.Fprintf(w, "HTTP/%s %s %s\n", r.HTTPVersion, formatStatusCodeWithColor(r.StatusCode), r.StatusMessage)

	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range r.Headers[name] {
			fmt.Fprintf(w, "%s: %s\n", colorLabel(name), value)
		}
	}
}

func renderTLSText(w io.Writer, r *inspect.TLSResult) {
	field := func(label, value string) {
		fmt.Fprintf(w, "%-14s %s\n", colorLabel(label+":"), value)
	}
	field("Subject", formatCertName(r.Subject))
	field("Issuer", formatCertName(r.Issuer))
	field("Serial", r.SerialNumber)
	field("Valid from", r.ValidFrom)
	field("Valid to", r.ValidTo)
	field("Alt names", strings.Join(r.SubjectAltNames, ", "))

	methods := make([]string, 0, len(r.InfoAccess))
	for method := range r.InfoAccess {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	for _, method := range methods {
		field(method, strings.Join(r.InfoAccess[method], ", "))
	}

	depth := 0
	for issuer := r.IssuerCertificate; issuer != nil; issuer = issuer.IssuerCertificate {
		depth++
		fmt.Fprintf(w, "%s %s\n", colorInfo(strings.Repeat("  ", depth)+"↳"), formatCertName(issuer.Subject))
		if issuer.IssuerCertificate == issuer || depth > 16 {
			break
		}
	}
}

func renderMetaText(w io.Writer, r *inspect.MetaResult) {
	field := func(label string, value *string) {
		text := colorWarn("(none)")
		if value != nil {
			text = *value
		}
		fmt.Fprintf(w, "%-13s %s\n", colorLabel(label+":"), text)
	}
	field("Title", r.Title)
	field("Charset", r.Charset)
	field("Keywords", r.Keywords)
	field("Description", r.Description)
}

// formatCertName renders a distinguished name as "CN=..., O=..., C=...".
func formatCertName(n inspect.CertName) string {
	parts := make([]string, 0, 6)
	for _, p := range []struct{ key, value string }{
		{"CN", n.CN}, {"OU", n.OU}, {"O", n.O}, {"L", n.L}, {"ST", n.ST}, {"C", n.C},
	} {
		if p.value != "" {
			parts = append(parts, p.key+"="+p.value)
		}
	}
	if len(parts) == 0 {
		return colorWarn("(empty)")
	}
	return strings.Join(parts, ", ")
}
