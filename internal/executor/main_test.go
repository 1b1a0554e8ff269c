package executor

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for the whole package: every
// handler goroutine this package spawns must have exited (or been
// abandoned only after sending to its buffered result channel) by the time
// a test returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
