// Package guard switches binaries into test mode when imported by their
// tests, so calling main does not dial PostgreSQL or Redis.
package guard

import "os"

func init() {
	if os.Getenv("PORTAL_TEST_MODE") == "" {
		_ = os.Setenv("PORTAL_TEST_MODE", "1")
	}
}
