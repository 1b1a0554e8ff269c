package transport

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for the whole package: the read
// loop goroutine Start spawns must have exited by the time a test returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
