// Package testing flips the process into test mode when imported by a test
// binary. Import it for side effects only.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("INVOICEDESK_TEST_MODE", "1")
		// Point the PDF renderer at a closed port so tests use the local fallback.
		if os.Getenv("GOTENBERG_URL") == "" {
			_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}
