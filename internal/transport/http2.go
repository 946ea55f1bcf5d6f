// Package transport builds HTTP clients for endpoints that require mutual TLS.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
)

// BuildHTTP2Client creates an HTTP/2 client that presents the given client
// certificate and trusts only the CA bundle at caPath.
func BuildHTTP2Client(certPath, keyPath, caPath string, timeout time.Duration) (*http.Client, error) {
	if certPath == "" {
		return nil, fmt.Errorf("certPath required")
	}
	if keyPath == "" {
		return nil, fmt.Errorf("keyPath required")
	}
	if caPath == "" {
		return nil, fmt.Errorf("caPath required")
	}

	clientCert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate %s", caPath)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS13,
	}

	return &http.Client{
		Transport: &http2.Transport{TLSClientConfig: tlsConfig},
		Timeout:   timeout,
	}, nil
}
