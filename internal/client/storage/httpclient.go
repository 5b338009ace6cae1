package storage

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

const requestTimeout = 10 * time.Second

// LoadTLSConfig returns the TLS settings for the mood store. The CA in caFile
// is trusted in addition to the system roots. An empty caFile yields nil.
func LoadTLSConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool, err := x509.SystemCertPool()
	if err != nil {
		caPool = x509.NewCertPool()
	}
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	return &tls.Config{
		RootCAs:    caPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// NewHTTPClient returns a client with a request timeout. A nil tlsConf keeps
// the default transport, which is what third-party endpoints get.
func NewHTTPClient(tlsConf *tls.Config) *http.Client {
	if tlsConf == nil {
		return &http.Client{Timeout: requestTimeout}
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConf,
	}
	return &http.Client{Transport: transport, Timeout: requestTimeout}
}
