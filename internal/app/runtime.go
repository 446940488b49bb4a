package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// TestModeEnv set to "1" makes serve and worker return before dialing
// Postgres or Redis.
const TestModeEnv = "INVOICEDESK_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

func readTestMode() {
	testMode.on.Store(os.Getenv(TestModeEnv) == "1")
}

// InTestMode reports whether TestModeEnv was set when first checked.
func InTestMode() bool {
	testMode.once.Do(readTestMode)
	return testMode.on.Load()
}

// RefreshTestMode rereads TestModeEnv.
func RefreshTestMode() {
	testMode.once.Do(func() {})
	readTestMode()
}
