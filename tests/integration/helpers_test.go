//go:build integration

package integration

import (
    "context"
    "fmt"
    "io"
    "log"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/amirimatin/assisted-clustering/pkg/api"
    "github.com/amirimatin/assisted-clustering/pkg/bootstrap"
    "github.com/amirimatin/assisted-clustering/pkg/cluster"
    "github.com/amirimatin/assisted-clustering/pkg/config"
)

// nodeConfig places node i on fixed loopback ports: REST API 1808i and
// membership 1796i, advertised as-is so flat files can list it.
func nodeConfig(i int) config.Config {
    c := config.Default()
    c.Host = "127.0.0.1"
    c.Port = 18080 + i
    c.NodeID = fmt.Sprintf("n%d", i)
    c.MemberBind = fmt.Sprintf("127.0.0.1:%d", 17960+i)
    c.MemberAdvertise = c.MemberBind
    c.JoinRetry = 200 * time.Millisecond
    c.DiscoveryInterval = 100 * time.Millisecond
    return c
}

func startNode(t *testing.T, ctx context.Context, c config.Config) *bootstrap.Node {
    t.Helper()
    n, err := bootstrap.Run(ctx, c, log.New(io.Discard, "", 0))
    require.NoError(t, err, "start %s", c.NodeID)
    return n
}

// formedStatus polls addr until the status route answers 200.
func formedStatus(t *testing.T, ctx context.Context, addr string, timeout time.Duration) *cluster.Status {
    t.Helper()
    cli := api.NewClient(2 * time.Second)
    var st *cluster.Status
    require.Eventually(t, func() bool {
        resp, err := cli.GetStatus(ctx, addr)
        if err != nil || !resp.Formed() { return false }
        st, err = resp.Status()
        return err == nil
    }, timeout, 200*time.Millisecond, "%s never formed", addr)
    return st
}
