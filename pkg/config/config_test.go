package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestDefaultMatchesFixedEndpoint(t *testing.T) {
    c := Default()
    assert.Equal(t, "localhost:8080", c.APIAddr())
    assert.Equal(t, 7946, c.MemberPort())
    assert.NoError(t, c.Validate(), "default must validate")
}

func TestFromEnvOverlays(t *testing.T) {
    t.Setenv("CLUSTERING_HOST", "0.0.0.0")
    t.Setenv("CLUSTERING_PORT", "18080")
    t.Setenv("CLUSTERING_DISCOVERY", "static")
    t.Setenv("CLUSTERING_SEEDS", "10.0.0.1:7946,10.0.0.2:7946")
    t.Setenv("CLUSTERING_JOIN_RETRY", "250ms")
    t.Setenv("CLUSTERING_DISCOVERY_REFRESH", "30s")
    t.Setenv("CLUSTERING_DISCOVERY_INTERVAL", "500ms")
    t.Setenv("CLUSTERING_TRACE", "true")
    t.Setenv("CLUSTERING_MEMBER_ADVERTISE", "10.0.0.1:7000")

    c, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "0.0.0.0:18080", c.APIAddr())
    assert.Equal(t, DiscoveryStatic, c.Discovery)
    assert.NotEmpty(t, c.SeedsCSV)
    assert.Equal(t, 250*time.Millisecond, c.JoinRetry)
    assert.Equal(t, 30*time.Second, c.DiscoveryRefresh)
    assert.Equal(t, 500*time.Millisecond, c.DiscoveryInterval)
    assert.True(t, c.Trace)
    assert.Equal(t, "10.0.0.1:7000", c.MemberAddr(), "advertise is preferred over bind")
    assert.Equal(t, 7000, c.MemberPort())
    assert.NoError(t, c.Validate())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
    for key, val := range map[string]string{
        "CLUSTERING_PORT":              "eighty",
        "CLUSTERING_JOIN_RETRY":        "soon",
        "CLUSTERING_DISCOVERY_REFRESH": "later",
        "CLUSTERING_TRACE":             "maybe",
    } {
        t.Run(key, func(t *testing.T) {
            t.Setenv(key, val)
            _, err := Load()
            require.Error(t, err)
            assert.Contains(t, err.Error(), key)
        })
    }
}

func TestValidate(t *testing.T) {
    cases := map[string]func(*Config){
        "port":      func(c *Config) { c.Port = 70000 },
        "bind":      func(c *Config) { c.MemberBind = "nope" },
        "advertise": func(c *Config) { c.MemberAdvertise = "nope" },
        "file":      func(c *Config) { c.Discovery = DiscoveryFile },
        "static":    func(c *Config) { c.Discovery = DiscoveryStatic },
        "dns":       func(c *Config) { c.Discovery = DiscoveryDNS },
        "unknown":   func(c *Config) { c.Discovery = "consul" },
    }
    for name, mutate := range cases {
        t.Run(name, func(t *testing.T) {
            c := Default()
            mutate(&c)
            assert.Error(t, c.Validate())
        })
    }
}
