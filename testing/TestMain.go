// Package testing prepares the process environment for tests that load the
// portal configuration. Import it for its side effects.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// TestAuthSecret is the signing secret installed when AUTH_SECRET is unset.
const TestAuthSecret = "test-secret-0123456789abcdef"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PORTAL_TEST_MODE", "1")
		if os.Getenv("AUTH_SECRET") == "" {
			_ = os.Setenv("AUTH_SECRET", TestAuthSecret)
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
