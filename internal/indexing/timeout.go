package indexing

import (
	"time"

	"github.com/slicegraph/slicegraph/internal/adapter"
)

// parseWithTimeout bounds a single adapter.Parse call, since the Adapter
// interface itself takes no context (spec §4.B). A parse that exceeds
// fileTimeout is treated like any other parse failure: isolated to the
// file, logged, and retried next run.
func parseWithTimeout(ad adapter.Adapter, content []byte, path string, fileTimeout time.Duration) (*adapter.Tree, error) {
	type result struct {
		tree *adapter.Tree
		err  error
	}
	done := make(chan result, 1)
	go func() {
		tree, err := ad.Parse(content, path)
		done <- result{tree, err}
	}()

	select {
	case r := <-done:
		return r.tree, r.err
	case <-time.After(fileTimeout):
		logger.Debugf("parse timeout for %s after %s", path, fileTimeout)
		return nil, errParseTimeout
	}
}

var errParseTimeout = parseTimeoutError{}

type parseTimeoutError struct{}

func (parseTimeoutError) Error() string { return "parse exceeded per-file timeout" }
