package cluster

import "errors"

var (
    ErrNotStarted     = errors.New("cluster: not started")
    ErrClosed         = errors.New("cluster: closed")
    ErrAlreadyApplied = errors.New("cluster: flat file already applied")
    ErrEmptyFlatFile  = errors.New("cluster: empty flat file")
)
