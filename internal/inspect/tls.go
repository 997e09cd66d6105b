package inspect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"net"
	"strings"
	"time"

	errs "github.com/khanhnv2901/webinspect/internal/shared/errors"
)

// certTimeLayout matches the OpenSSL "notBefore/notAfter" rendering.
const certTimeLayout = "Jan _2 15:04:05 2006 GMT"

// CertName is the distinguished-name projection of a certificate subject or
// issuer. Multi-valued attributes are joined with ", ".
type CertName struct {
	C  string `json:"C,omitempty" yaml:"C,omitempty"`
	ST string `json:"ST,omitempty" yaml:"ST,omitempty"`
	L  string `json:"L,omitempty" yaml:"L,omitempty"`
	O  string `json:"O,omitempty" yaml:"O,omitempty"`
	OU string `json:"OU,omitempty" yaml:"OU,omitempty"`
	CN string `json:"CN,omitempty" yaml:"CN,omitempty"`
}

// PeerCertificate is one link of the peer's chain. IssuerCertificate points at
// the next certificate: the verified chain up to the trusted root when
// verification succeeds, the presented chain otherwise.
// A self-signed certificate references a copy of itself whose own
// IssuerCertificate is nil, so the structure stays finite.
type PeerCertificate struct {
	Subject           CertName            `json:"subject" yaml:"subject"`
	Issuer            CertName            `json:"issuer" yaml:"issuer"`
	InfoAccess        map[string][]string `json:"infoAccess,omitempty" yaml:"infoAccess,omitempty"`
	IssuerCertificate *PeerCertificate    `json:"issuerCertificate,omitempty" yaml:"issuerCertificate,omitempty"`
	SubjectAltName    string              `json:"subjectaltname,omitempty" yaml:"subjectaltname,omitempty"`
	ValidFrom         string              `json:"valid_from" yaml:"valid_from"`
	ValidTo           string              `json:"valid_to" yaml:"valid_to"`
	SerialNumber      string              `json:"serialNumber" yaml:"serialNumber"`
	Fingerprint256    string              `json:"fingerprint256" yaml:"fingerprint256"`
	SelfSigned        bool                `json:"selfSigned,omitempty" yaml:"selfSigned,omitempty"`
}

// Inspection is the raw outcome of a TLS handshake.
type Inspection struct {
	Certificate        *PeerCertificate
	Authorized         bool
	AuthorizationError error
}

// AuthorizationError wraps a certificate verification failure such as a
// hostname mismatch or an unknown authority.
type AuthorizationError struct {
	Err error
}

func (e *AuthorizationError) Error() string {
	return e.Err.Error()
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// TLSInspector opens one TLS connection per call and reports the peer
// certificate chain.
type TLSInspector struct {
	// Timeout bounds dial plus handshake when the descriptor has none.
	// Zero waits forever.
	Timeout time.Duration
	RootCAs *x509.CertPool
}

// Inspect dials d.Hostname:d.Port, completes the handshake and closes the
// connection straight away. Verification is done after the handshake so the
// certificate is available even when it does not verify; with
// d.RejectUnauthorized set, an unverifiable peer fails with an
// *AuthorizationError.
func (t *TLSInspector) Inspect(ctx context.Context, d Descriptor) (*Inspection, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = t.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	serverName := d.ServerName
	if serverName == "" && net.ParseIP(d.Hostname) == nil {
		serverName = d.Hostname
	}

	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName: serverName,
			// Verified below so that unauthorized peers still yield a certificate.
			InsecureSkipVerify: true, //nolint:gosec
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", d.Address())
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: d.Address(), Err: err}
	}
	state := conn.(*tls.Conn).ConnectionState()
	_ = conn.Close()

	verifyName := serverName
	if verifyName == "" {
		verifyName = d.Hostname
	}

	// A verified chain runs up to the trusted root even when the server
	// only sent its leaf; otherwise report what was presented.
	chain := state.PeerCertificates
	ins := &Inspection{}
	verified, authErr := verifyPeer(chain, verifyName, t.RootCAs)
	if authErr != nil {
		ins.AuthorizationError = &AuthorizationError{Err: authErr}
	} else {
		ins.Authorized = len(chain) > 0
		if len(verified) > 0 {
			chain = verified
		}
	}
	ins.Certificate = newPeerCertificate(chain)

	switch {
	case ins.AuthorizationError != nil && d.RejectUnauthorized:
		return nil, ins.AuthorizationError
	case ins.Certificate != nil:
		return ins, nil
	case ins.AuthorizationError != nil:
		return nil, ins.AuthorizationError
	}
	return nil, errs.ErrNoUsableCertificate
}

// verifyPeer returns the first verified chain, leaf first and trusted root last.
func verifyPeer(chain []*x509.Certificate, name string, roots *x509.CertPool) ([]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, nil
	}
	opts := x509.VerifyOptions{
		DNSName:       name,
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range chain[1:] {
		opts.Intermediates.AddCert(c)
	}
	chains, err := chain[0].Verify(opts)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		return nil, nil
	}
	return chains[0], nil
}

func newPeerCertificate(chain []*x509.Certificate) *PeerCertificate {
	var issuer *PeerCertificate
	for i := len(chain) - 1; i >= 0; i-- {
		pc := describeCertificate(chain[i])
		if pc.SelfSigned {
			self := *pc
			pc.IssuerCertificate = &self
		} else {
			pc.IssuerCertificate = issuer
		}
		issuer = pc
	}
	return issuer
}

func describeCertificate(c *x509.Certificate) *PeerCertificate {
	sum := sha256.Sum256(c.Raw)
	return &PeerCertificate{
		Subject:        certName(c.Subject),
		Issuer:         certName(c.Issuer),
		InfoAccess:     infoAccess(c),
		SubjectAltName: subjectAltName(c),
		ValidFrom:      c.NotBefore.UTC().Format(certTimeLayout),
		ValidTo:        c.NotAfter.UTC().Format(certTimeLayout),
		SerialNumber:   serialNumber(c),
		Fingerprint256: colonHex(sum[:]),
		SelfSigned:     isSelfSigned(c),
	}
}

func certName(n pkix.Name) CertName {
	join := func(v []string) string { return strings.Join(v, ", ") }
	return CertName{
		C:  join(n.Country),
		ST: join(n.Province),
		L:  join(n.Locality),
		O:  join(n.Organization),
		OU: join(n.OrganizationalUnit),
		CN: n.CommonName,
	}
}

func infoAccess(c *x509.Certificate) map[string][]string {
	if len(c.OCSPServer) == 0 && len(c.IssuingCertificateURL) == 0 {
		return nil
	}
	access := make(map[string][]string, 2)
	if len(c.OCSPServer) > 0 {
		access["OCSP - URI"] = append([]string(nil), c.OCSPServer...)
	}
	if len(c.IssuingCertificateURL) > 0 {
		access["CA Issuers - URI"] = append([]string(nil), c.IssuingCertificateURL...)
	}
	return access
}

// subjectAltName renders SANs the OpenSSL way: "DNS:a, DNS:b, IP Address:1.2.3.4".
func subjectAltName(c *x509.Certificate) string {
	parts := make([]string, 0, len(c.DNSNames)+len(c.IPAddresses)+len(c.EmailAddresses)+len(c.URIs))
	for _, name := range c.DNSNames {
		parts = append(parts, "DNS:"+name)
	}
	for _, ip := range c.IPAddresses {
		parts = append(parts, "IP Address:"+ip.String())
	}
	for _, email := range c.EmailAddresses {
		parts = append(parts, "email:"+email)
	}
	for _, uri := range c.URIs {
		parts = append(parts, "URI:"+uri.String())
	}
	return strings.Join(parts, ", ")
}

func serialNumber(c *x509.Certificate) string {
	if c.SerialNumber == nil {
		return ""
	}
	b := c.SerialNumber.Bytes()
	if len(b) == 0 {
		return "00"
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

func colonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{v}))
	}
	return strings.Join(parts, ":")
}

func isSelfSigned(c *x509.Certificate) bool {
	if !bytes.Equal(c.RawIssuer, c.RawSubject) {
		return false
	}
	return c.CheckSignature(c.SignatureAlgorithm, c.RawTBSCertificate, c.Signature) == nil
}
