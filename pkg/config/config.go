package config

import (
    "errors"
    "fmt"
    "net"
    "os"
    "strconv"
    "strings"
    "time"

    tlsx "github.com/amirimatin/assisted-clustering/pkg/security/tlsconfig"
)

// Discovery backends able to provide the initial flat file. DiscoveryNone
// waits for a flat file to be POSTed to the REST API.
const (
    DiscoveryNone   = "none"
    DiscoveryFile   = "file"
    DiscoveryStatic = "static"
    DiscoveryDNS    = "dns"
)

// Config is the full node configuration. Zero values are filled by Default;
// FromEnv overlays CLUSTERING_* variables and CLI flags override both.
type Config struct {
    // REST API
    Host string
    Port int

    // Membership
    NodeID          string
    MemberBind      string
    MemberAdvertise string
    JoinRetry       time.Duration

    // Flat file sources
    Discovery         string
    FlatFilePath      string
    FlatFileEnv       string
    SeedsCSV          string
    DNSNamesCSV       string
    DiscoveryRefresh  time.Duration
    DiscoveryInterval time.Duration

    TLS tlsx.Options

    Trace   bool
    LogJSON bool
}

// Default returns the configuration a bare node starts with: REST API on
// localhost:8080, membership on :7946, no discovery.
func Default() Config {
    return Config{
        Host:              "localhost",
        Port:              8080,
        MemberBind:        "0.0.0.0:7946",
        JoinRetry:         time.Second,
        Discovery:         DiscoveryNone,
        DiscoveryRefresh:  5 * time.Second,
        DiscoveryInterval: 2 * time.Second,
    }
}

func getEnv(key, fallback string) string {
    if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" { return strings.TrimSpace(v) }
    return fallback
}

// FromEnv overlays environment variables on base.
func FromEnv(base Config) (Config, error) {
    c := base
    c.Host = getEnv("CLUSTERING_HOST", c.Host)
    c.NodeID = getEnv("CLUSTERING_NODE_ID", c.NodeID)
    c.MemberBind = getEnv("CLUSTERING_MEMBER_BIND", c.MemberBind)
    c.MemberAdvertise = getEnv("CLUSTERING_MEMBER_ADVERTISE", c.MemberAdvertise)
    c.Discovery = getEnv("CLUSTERING_DISCOVERY", c.Discovery)
    c.FlatFilePath = getEnv("CLUSTERING_FLATFILE_PATH", c.FlatFilePath)
    c.FlatFileEnv = getEnv("CLUSTERING_FLATFILE_ENV", c.FlatFileEnv)
    c.SeedsCSV = getEnv("CLUSTERING_SEEDS", c.SeedsCSV)
    c.DNSNamesCSV = getEnv("CLUSTERING_DNS_NAMES", c.DNSNamesCSV)
    c.TLS.CAFile = getEnv("CLUSTERING_TLS_CA", c.TLS.CAFile)
    c.TLS.CertFile = getEnv("CLUSTERING_TLS_CERT", c.TLS.CertFile)
    c.TLS.KeyFile = getEnv("CLUSTERING_TLS_KEY", c.TLS.KeyFile)

    var err error
    if c.Port, err = intEnv("CLUSTERING_PORT", c.Port); err != nil { return base, err }
    if c.JoinRetry, err = durationEnv("CLUSTERING_JOIN_RETRY", c.JoinRetry); err != nil { return base, err }
    if c.DiscoveryRefresh, err = durationEnv("CLUSTERING_DISCOVERY_REFRESH", c.DiscoveryRefresh); err != nil { return base, err }
    if c.DiscoveryInterval, err = durationEnv("CLUSTERING_DISCOVERY_INTERVAL", c.DiscoveryInterval); err != nil { return base, err }
    if c.TLS.Enable, err = boolEnv("CLUSTERING_TLS_ENABLE", c.TLS.Enable); err != nil { return base, err }
    if c.Trace, err = boolEnv("CLUSTERING_TRACE", c.Trace); err != nil { return base, err }
    if c.LogJSON, err = boolEnv("CLUSTERING_LOG_JSON", c.LogJSON); err != nil { return base, err }
    return c, nil
}

// Load is FromEnv(Default()).
func Load() (Config, error) { return FromEnv(Default()) }

// Validate rejects configurations a node cannot start with.
func (c Config) Validate() error {
    var errs []error
    if c.Port < 0 || c.Port > 65535 { errs = append(errs, fmt.Errorf("config: port %d out of range", c.Port)) }
    if _, _, err := net.SplitHostPort(c.MemberBind); err != nil { errs = append(errs, fmt.Errorf("config: member bind %q: %w", c.MemberBind, err)) }
    if c.MemberAdvertise != "" {
        if _, _, err := net.SplitHostPort(c.MemberAdvertise); err != nil { errs = append(errs, fmt.Errorf("config: member advertise %q: %w", c.MemberAdvertise, err)) }
    }
    switch c.Discovery {
    case "", DiscoveryNone:
    case DiscoveryFile:
        if c.FlatFilePath == "" && c.FlatFileEnv == "" { errs = append(errs, errors.New("config: file discovery needs a flat file path or env var")) }
    case DiscoveryStatic:
        if strings.TrimSpace(c.SeedsCSV) == "" { errs = append(errs, errors.New("config: static discovery needs seeds")) }
    case DiscoveryDNS:
        if strings.TrimSpace(c.DNSNamesCSV) == "" { errs = append(errs, errors.New("config: dns discovery needs names")) }
    default:
        errs = append(errs, fmt.Errorf("config: unknown discovery %q", c.Discovery))
    }
    return errors.Join(errs...)
}

// APIAddr is the host:port the REST API binds.
func (c Config) APIAddr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// MemberAddr is the address peers reach this node at; flat files list it.
func (c Config) MemberAddr() string {
    if c.MemberAdvertise != "" { return c.MemberAdvertise }
    return c.MemberBind
}

// MemberPort is the membership port, used to complete flat file entries
// that carry no port.
func (c Config) MemberPort() int {
    _, p, err := net.SplitHostPort(c.MemberAddr())
    if err != nil { return 0 }
    n, _ := strconv.Atoi(p)
    return n
}

func intEnv(key string, fallback int) (int, error) {
    v := getEnv(key, "")
    if v == "" { return fallback, nil }
    n, err := strconv.Atoi(v)
    if err != nil { return fallback, fmt.Errorf("config: %s: %w", key, err) }
    return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
    v := getEnv(key, "")
    if v == "" { return fallback, nil }
    d, err := time.ParseDuration(v)
    if err != nil { return fallback, fmt.Errorf("config: %s: %w", key, err) }
    return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
    v := getEnv(key, "")
    if v == "" { return fallback, nil }
    b, err := strconv.ParseBool(v)
    if err != nil { return fallback, fmt.Errorf("config: %s: %w", key, err) }
    return b, nil
}
