package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv names the variable that makes binaries return before touching
// PostgreSQL or Redis.
const TestModeEnv = "PORTAL_TEST_MODE"

var testMode atomic.Pointer[bool]

func readTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(&on)
	return on
}

// InTestMode reports whether the application should skip runtime side effects.
// The environment is read once and cached.
func InTestMode() bool {
	if cached := testMode.Load(); cached != nil {
		return *cached
	}
	return readTestMode()
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	readTestMode()
}
