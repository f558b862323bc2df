// Package vocred holds the X.509 client certificate used to authenticate to
// the VOSpace service and builds HTTP clients bound to it, the Go analogue
// of vos.py's Connection class: load the PEM once, hand out TLS-backed
// connections to callers afterward. A Credential is read-only after
// construction and safe to share across goroutines.
package vocred

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
	"github.com/cadc-nrc/govospace/pkg/volog"
)

// defaultRelPath is where the certificate lives under $HOME when no path is
// given explicitly, matching vos.py's ${HOME}/.ssl/cadcproxy.pem default.
const defaultRelPath = ".ssl/cadcproxy.pem"

// ConnectTimeout is the per-attempt TLS handshake timeout.
const ConnectTimeout = 600 * time.Second

// ConnectRetryBudget is the wall-clock deadline for the connect retry loop.
const ConnectRetryBudget = 20 * time.Minute

// Credential holds a loaded client certificate and key pair.
type Credential struct {
	path string
	cert tls.Certificate
}

// Load reads the PEM file at path (or the default location under $HOME if
// path is empty) and returns a Credential. The default directory is created
// if missing; a missing $HOME is a permanent configuration error, and a
// missing certificate file is surfaced as PermissionDenied with a message
// directing the caller to obtain one.
func Load(path string) (*Credential, error) {
	if path == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return nil, voerrors.InvalidArgument("HOME is not set and no certificate path was given")
		}
		dir := filepath.Join(home, ".ssl")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("vocred: creating %s: %w", dir, err)
		}
		path = filepath.Join(home, defaultRelPath)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, voerrors.PermissionDenied(fmt.Sprintf(
			"no certificate file found at %s (obtain one from the certificate-issuing service)", path))
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, voerrors.PermissionDenied(fmt.Sprintf("reading certificate file %s: %v", path, err))
	}

	// The PEM file concatenates the private key and the certificate chain;
	// tls.X509KeyPair finds both kinds of block in a single buffer.
	cert, err := tls.X509KeyPair(pem, pem)
	if err != nil {
		return nil, voerrors.PermissionDenied(fmt.Sprintf("parsing certificate file %s: %v", path, err))
	}

	return &Credential{path: path, cert: cert}, nil
}

// Path returns the filesystem path of the loaded certificate.
func (c *Credential) Path() string { return c.path }

// NewClient returns an *http.Client whose Transport dials with the held
// client certificate and retries transport-level connect failures for up to
// ConnectRetryBudget. A non-transport failure during the TLS handshake
// (invalid or expired certificate) is never retried and fails immediately.
// The client never follows redirects itself — the VOSpace protocol's
// redirect handling happens one level up, in the VOFile state machine,
// because a redirect can change the HTTP method.
func (c *Credential) NewClient() *http.Client {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{c.cert},
		MinVersion:   tls.VersionTLS12,
	}

	transport := &http.Transport{
		DialTLSContext: c.dialTLSWithRetry(tlsConfig),
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *Credential) dialTLSWithRetry(tlsConfig *tls.Config) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		log := volog.FromContext(ctx)
		var conn net.Conn

		attempt := func() error {
			dialer := &net.Dialer{Timeout: ConnectTimeout}
			tlsConn, err := tls.DialWithDialer(dialer, network, addr, tlsConfig)
			if err == nil {
				conn = tlsConn
				return nil
			}
			if isTransportFailure(err) {
				log.Warn().Err(err).Str("addr", addr).Msg("transport failure connecting, retrying")
				return err
			}
			// Not a transport-level failure: treat as an invalid/expired
			// certificate and stop retrying immediately.
			return backoff.Permanent(err)
		}

		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = ConnectRetryBudget

		if err := backoff.Retry(attempt, b); err != nil {
			return nil, voerrors.ConnectionRefused(fmt.Sprintf("%s: %v", addr, err))
		}
		return conn, nil
	}
}

// isTransportFailure reports whether err looks like a recoverable
// transport-level failure (timeout, connection refused, no route) as
// opposed to a TLS/certificate validation failure, which is permanent.
func isTransportFailure(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}
	var x509Err x509.CertificateInvalidError
	if errors.As(err, &x509Err) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}
