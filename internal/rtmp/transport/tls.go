package transport

import (
	"crypto/tls"
	"fmt"
	"net"

	certificateloader "github.com/AgustinSRG/go-tls-certificate-loader"
)

// CertificateLoader supplies the server certificate for a TLS listener. It
// is a narrow adapter so a hot-reloading loader implementation can be
// plugged in without this package depending on any specific cert-management
// package beyond this interface; rtmps:///rtmpts:// deployments that rotate
// certificates without a restart implement this themselves.
type CertificateLoader interface {
	GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error)
}

// reloadingCertLoader adapts github.com/AgustinSRG/go-tls-certificate-loader's
// CertificateLoader to this package's narrower interface.
type reloadingCertLoader struct {
	inner *certificateloader.CertificateLoader
}

// NewFileCertificateLoader loads certPath/keyPath once and polls for
// changes every checkReloadSeconds, swapping the in-memory certificate
// without interrupting listeners already using it.
func NewFileCertificateLoader(certPath, keyPath string, checkReloadSeconds int) (CertificateLoader, error) {
	loader, err := certificateloader.NewCertificateLoader(certPath, keyPath, checkReloadSeconds)
	if err != nil {
		return nil, fmt.Errorf("transport.tls: load certificate: %w", err)
	}
	go loader.RunReloadThread()
	return &reloadingCertLoader{inner: loader}, nil
}

func (r *reloadingCertLoader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.inner.GetCertificateFunc()
}

// ListenTLS opens a TLS listener on addr (host:port) using loader for
// certificate material, used for rtmps:// (port 443 by convention). Each
// accepted connection is wrapped the same way as a plain TCP connection
// (*tls.Conn satisfies net.Conn), so the rest of the stack never needs to
// know the connection is encrypted.
func ListenTLS(addr string, loader CertificateLoader) (Listener, error) {
	cfg := &tls.Config{
		GetCertificate: loader.GetCertificateFunc(),
		MinVersion:     tls.VersionTLS12,
	}
	l, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport.tls: listen: %w", err)
	}
	return &tcpListener{l: l}, nil
}

// DialTLS connects to addr as a TLS client (used by relay/publish-out
// paths that push to an rtmps:// destination). serverName drives SNI and
// certificate verification; pass "" to derive it from addr's host.
func DialTLS(addr string, serverName string) (Conn, error) {
	host := serverName
	if host == "" {
		h, _, err := net.SplitHostPort(addr)
		if err == nil {
			host = h
		}
	}
	c, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return nil, fmt.Errorf("transport.tls: dial: %w", err)
	}
	return NewTCPConn(c), nil
}
