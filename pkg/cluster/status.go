package cluster

// Status is the body of a 200 answer on the cluster status route. Node
// entries are host:port strings exactly as listed in the applied flat file.
type Status struct {
    // LeaderNode is the lowest healthy node address.
    LeaderNode string `json:"leader_node"`
    // HealthyNodes are flat file nodes currently alive in membership.
    HealthyNodes []string `json:"healthy_nodes"`
    // UnhealthyNodes are flat file nodes not currently alive.
    UnhealthyNodes []string `json:"unhealthy_nodes"`
}
