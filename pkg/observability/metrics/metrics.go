package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    StatusRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "assisted_clustering",
        Name:      "status_requests_total",
        Help:      "Cluster status requests served, by HTTP status code",
    }, []string{"code"})

    FlatFileSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "assisted_clustering",
        Name:      "flatfile_submissions_total",
        Help:      "Flat file submissions, by result",
    }, []string{"result"})

    FlatFileNodes = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "assisted_clustering",
        Name:      "flatfile_nodes",
        Help:      "Number of nodes listed in the applied flat file",
    })

    ClusterMembers = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "assisted_clustering",
        Name:      "members_total",
        Help:      "Current number of members visible through membership",
    })

    HealthyNodes = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "assisted_clustering",
        Name:      "healthy_nodes",
        Help:      "Flat file nodes currently alive",
    })

    UnhealthyNodes = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "assisted_clustering",
        Name:      "unhealthy_nodes",
        Help:      "Flat file nodes currently not alive",
    })

    Formed = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "assisted_clustering",
        Name:      "cluster_formed",
        Help:      "1 once every flat file node has been seen alive, else 0",
    })

    MembershipHealthScore = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "assisted_clustering",
        Subsystem: "membership",
        Name:      "health_score",
        Help:      "Awareness score reported by the membership layer (lower is healthier)",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(StatusRequests)
        prometheus.MustRegister(FlatFileSubmissions)
        prometheus.MustRegister(FlatFileNodes)
        prometheus.MustRegister(ClusterMembers)
        prometheus.MustRegister(HealthyNodes)
        prometheus.MustRegister(UnhealthyNodes)
        prometheus.MustRegister(Formed)
        prometheus.MustRegister(MembershipHealthScore)
    })
}
