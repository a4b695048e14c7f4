package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

// reloadTTL bounds how long a loaded key pair is reused before the files are read again.
const reloadTTL = 10 * time.Second

var ErrMissingKeyPair = errors.New("tls: cert and key required when TLS enabled")

// Options describes the TLS material for the REST API and its client.
type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    InsecureSkipVerify bool
    ServerName         string
}

// Server returns a server config, or nil when TLS is disabled. The key pair is
// re-read from disk lazily so certificates can be rotated in place. With a CA
// file, client certificates are required (mTLS).
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if o.CertFile == "" || o.KeyFile == "" { return nil, ErrMissingKeyPair }
    kp := &keyPair{cert: o.CertFile, key: o.KeyFile}
    // fail fast on unreadable material instead of at the first handshake
    if _, err := kp.get(); err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12}
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    cfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return kp.get() }
    return cfg, nil
}

// Client returns a client config, or nil when TLS is disabled.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: o.InsecureSkipVerify} //nolint:gosec
    if o.ServerName != "" { cfg.ServerName = o.ServerName }
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile != "" && o.KeyFile != "" {
        kp := &keyPair{cert: o.CertFile, key: o.KeyFile}
        cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return kp.get() }
    }
    return cfg, nil
}

type keyPair struct {
    cert, key string
    mu        sync.Mutex
    cached    *tls.Certificate
    loadedAt  time.Time
}

func (k *keyPair) get() (*tls.Certificate, error) {
    k.mu.Lock(); defer k.mu.Unlock()
    if k.cached != nil && time.Since(k.loadedAt) < reloadTTL { return k.cached, nil }
    c, err := tls.LoadX509KeyPair(k.cert, k.key)
    if err != nil { return nil, fmt.Errorf("tls: load key pair: %w", err) }
    k.cached = &c
    k.loadedAt = time.Now()
    return k.cached, nil
}

func loadPool(path string) (*x509.CertPool, error) {
    pem, err := os.ReadFile(path)
    if err != nil { return nil, fmt.Errorf("tls: read CA: %w", err) }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("tls: no certificates in %s", path) }
    return pool, nil
}
