package main

import (
    "log"

    clusteringcli "github.com/amirimatin/assisted-clustering/pkg/cli"
)

func main() {
    if err := clusteringcli.NewRootCmd("clusteringctl").Execute(); err != nil {
        log.Fatal(err)
    }
}
