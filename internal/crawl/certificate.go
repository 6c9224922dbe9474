package crawl

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// CertificateFetcher retrieves the leaf certificate of a host over a
// direct TLS socket. It accepts self-signed and otherwise invalid
// chains; validity problems are the scanner's findings to make.
type CertificateFetcher struct {
	timeout time.Duration
	logger  *logrus.Logger
}

func NewCertificateFetcher(timeout time.Duration, logger *logrus.Logger) *CertificateFetcher {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CertificateFetcher{timeout: timeout, logger: logger}
}

func (f *CertificateFetcher) Fetch(ctx context.Context, host, port string) (*models.SSLCertificate, error) {
	if port == "" {
		port = "443"
	}

	dialer := &net.Dialer{Timeout: f.timeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("dial %s:%s: %w", host, port, err)
	}

	// The raw DER chain is captured so the leaf goes through ParseRaw,
	// which tolerates certificates the standard parser rejects.
	var rawChain [][]byte
	conn := tls.Client(rawConn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			rawChain = rawCerts
			return nil
		},
	})
	defer conn.Close()

	handshakeCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}

	if len(rawChain) == 0 {
		return nil, fmt.Errorf("no peer certificates from %s", host)
	}
	cert, err := f.ParseRaw(rawChain[0], len(rawChain) == 1)
	if err != nil {
		return nil, fmt.Errorf("leaf certificate from %s: %w", host, err)
	}
	return cert, nil
}

// ParseRaw converts leaf DER bytes into a certificate record, falling
// back to the certificate-transparency parser for certificates the
// standard library rejects (negative serials, legacy algorithms).
func (f *CertificateFetcher) ParseRaw(der []byte, singleChain bool) (*models.SSLCertificate, error) {
	if cert, err := x509.ParseCertificate(der); err == nil {
		return f.convert(cert, singleChain), nil
	}
	cert, err := ctx509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	sum := sha256.Sum256(cert.Raw)
	selfSigned := cert.Subject.String() == cert.Issuer.String()
	if singleChain && cert.CheckSignatureFrom(cert) == nil {
		selfSigned = true
	}
	return &models.SSLCertificate{
		Subject:       cert.Subject.CommonName,
		Issuer:        cert.Issuer.CommonName,
		SerialNumber:  cert.SerialNumber.String(),
		ValidFrom:     cert.NotBefore,
		ValidTo:       cert.NotAfter,
		DNSNames:      cert.DNSNames,
		SignatureAlgo: cert.SignatureAlgorithm.String(),
		Fingerprint:   hex.EncodeToString(sum[:]),
		SelfSigned:    selfSigned,
		Source:        "socket",
	}, nil
}

func (f *CertificateFetcher) convert(cert *x509.Certificate, singleChain bool) *models.SSLCertificate {
	sum := sha256.Sum256(cert.Raw)
	selfSigned := cert.Subject.String() == cert.Issuer.String()
	if singleChain && cert.CheckSignatureFrom(cert) == nil {
		selfSigned = true
	}
	return &models.SSLCertificate{
		Subject:       cert.Subject.CommonName,
		Issuer:        cert.Issuer.CommonName,
		SerialNumber:  cert.SerialNumber.String(),
		ValidFrom:     cert.NotBefore,
		ValidTo:       cert.NotAfter,
		DNSNames:      cert.DNSNames,
		SignatureAlgo: cert.SignatureAlgorithm.String(),
		Fingerprint:   hex.EncodeToString(sum[:]),
		SelfSigned:    selfSigned,
		Source:        "socket",
	}
}
