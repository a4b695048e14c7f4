package cluster

import (
    "errors"
    "log"
    "time"

    "github.com/amirimatin/assisted-clustering/pkg/membership"
)

// Options carries the collaborators of the formation runtime. Instances are
// normally produced by bootstrap.Build.
type Options struct {
    // NodeID identifies this node in membership.
    NodeID string
    // Membership is the gossip layer nodes are joined through (required).
    Membership membership.Membership
    // Logger is required; bootstrap supplies log.Default().
    Logger *log.Logger
    // JoinRetry is the interval at which unreachable flat file nodes are
    // re-joined until the cluster forms. Defaults to 1s.
    JoinRetry time.Duration
}

// Validate checks required fields without touching the network.
func (o Options) Validate() error {
    if o.NodeID == "" { return errors.New("cluster: empty NodeID") }
    if o.Membership == nil { return errors.New("cluster: nil Membership") }
    if o.Logger == nil { return errors.New("cluster: nil Logger") }
    return nil
}
