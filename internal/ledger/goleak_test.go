package ledger_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak across the ledger package's tests.
// The cache and slice-session bookkeeping underneath BuildSlice/RefreshSlice
// is exactly the kind of concurrent state a leaked background goroutine
// would corrupt silently between test cases.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
