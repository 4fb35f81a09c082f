package adapter

import "github.com/slicegraph/slicegraph/internal/log"

var logger = log.For("adapter")
