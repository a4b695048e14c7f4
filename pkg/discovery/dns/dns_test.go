package dns

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestParseSRVName(t *testing.T) {
    s, p, n := parseSRVName("_h2o._tcp.svc.cluster.local")
    assert.Equal(t, []string{"h2o", "tcp", "svc.cluster.local"}, []string{s, p, n})
    for _, bad := range []string{"bad.srv", "_only.one", "_a.b.c"} {
        s, p, n := parseSRVName(bad)
        assert.Equal(t, []string{"", "", ""}, []string{s, p, n}, bad)
    }
}

func TestPassthroughHostPort(t *testing.T) {
    d := New(Options{Names: []string{"1.2.3.4:7946", "[::1]:7946", "1.2.3.4:7946"}})
    assert.Equal(t, []string{"1.2.3.4:7946", "[::1]:7946"}, d.Seeds(context.Background()))
}

func TestLookupHostLocalhost(t *testing.T) {
    d := New(Options{Names: []string{"localhost"}, Port: 12345, Refresh: 5 * time.Millisecond})
    got := d.Seeds(context.Background())
    require.NotEmpty(t, got)
    for _, s := range got { assert.Regexp(t, `:12345$`, s) }
}
