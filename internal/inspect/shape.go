package inspect

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StatusResult echoes the request and copies the response status line and headers.
type StatusResult struct {
	Request       string      `json:"request" yaml:"request"`
	StatusCode    int         `json:"statusCode" yaml:"statusCode"`
	HTTPVersion   string      `json:"httpVersion" yaml:"httpVersion"`
	StatusMessage string      `json:"statusMessage" yaml:"statusMessage"`
	Headers       http.Header `json:"headers" yaml:"headers"`
}

// TLSResult is the caller-facing view of the peer certificate.
type TLSResult struct {
	Subject           CertName            `json:"subject" yaml:"subject"`
	Issuer            CertName            `json:"issuer" yaml:"issuer"`
	InfoAccess        map[string][]string `json:"infoAccess" yaml:"infoAccess"`
	IssuerCertificate *PeerCertificate    `json:"issuerCertificate" yaml:"issuerCertificate"`
	SubjectAltNames   []string            `json:"subjectaltname" yaml:"subjectaltname"`
	ValidFrom         string              `json:"valid_from" yaml:"valid_from"`
	ValidTo           string              `json:"valid_to" yaml:"valid_to"`
	SerialNumber      string              `json:"serialNumber" yaml:"serialNumber"`
}

// MetaResult holds document metadata. Absent or empty values are nil.
type MetaResult struct {
	Title       *string `json:"title" yaml:"title"`
	Charset     *string `json:"charset" yaml:"charset"`
	Keywords    *string `json:"keywords" yaml:"keywords"`
	Description *string `json:"description" yaml:"description"`
}

// ShapeStatus projects resp into a StatusResult using d for the request echo.
func ShapeStatus(d Descriptor, resp *http.Response) StatusResult {
	return StatusResult{
		Request:       d.Summary(),
		StatusCode:    resp.StatusCode,
		HTTPVersion:   fmt.Sprintf("%d.%d", resp.ProtoMajor, resp.ProtoMinor),
		StatusMessage: reasonPhrase(resp),
		Headers:       resp.Header.Clone(),
	}
}

// reasonPhrase strips the status code from resp.Status ("200 OK" -> "OK").
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if msg, ok := strings.CutPrefix(resp.Status, code); ok {
		return strings.TrimSpace(msg)
	}
	if resp.Status != "" {
		return resp.Status
	}
	return http.StatusText(resp.StatusCode)
}

// ShapeTLS projects a peer certificate into a TLSResult.
func ShapeTLS(cert *PeerCertificate) TLSResult {
	if cert == nil {
		return TLSResult{SubjectAltNames: []string{}}
	}
	return TLSResult{
		Subject:           cert.Subject,
		Issuer:            cert.Issuer,
		InfoAccess:        cert.InfoAccess,
		IssuerCertificate: cert.IssuerCertificate,
		SubjectAltNames:   ParseSubjectAltNames(cert.SubjectAltName),
		ValidFrom:         cert.ValidFrom,
		ValidTo:           cert.ValidTo,
		SerialNumber:      cert.SerialNumber,
	}
}

// ParseSubjectAltNames splits a comma-joined SAN string, strips "DNS:"
// prefixes and drops empty entries. "DNS:a.com,DNS:b.com," yields
// ["a.com", "b.com"]. The result is never nil.
func ParseSubjectAltNames(raw string) []string {
	names := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimSpace(strings.TrimPrefix(part, "DNS:"))
		if part == "" {
			continue
		}
		names = append(names, part)
	}
	return names
}

// ShapeMeta parses an HTML document and extracts the first <title> text,
// meta[name=keywords] and meta[name=description] content, and the charset
// attribute of the first element that carries one.
func ShapeMeta(body string) MetaResult {
	var m MetaResult

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return m
	}

	var titleSeen, keywordsSeen, descriptionSeen, charsetSeen bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if !titleSeen {
					titleSeen = true
					m.Title = nonEmpty(textContent(n))
				}
			case atom.Meta:
				name, _ := attr(n, "name")
				switch {
				case strings.EqualFold(name, "keywords") && !keywordsSeen:
					keywordsSeen = true
					content, _ := attr(n, "content")
					m.Keywords = nonEmpty(content)
				case strings.EqualFold(name, "description") && !descriptionSeen:
					descriptionSeen = true
					content, _ := attr(n, "content")
					m.Description = nonEmpty(content)
				}
			}
			if !charsetSeen {
				if cs, ok := attr(n, "charset"); ok {
					charsetSeen = true
					m.Charset = nonEmpty(cs)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return m
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
