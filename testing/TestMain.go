// Package testing switches the application into test mode for any package
// that imports it, so binaries skip connecting to Postgres and Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("RENTROLL_TEST_MODE", "1")
		if os.Getenv("RENT_STORE") == "" {
			_ = os.Setenv("RENT_STORE", "sqlite")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
