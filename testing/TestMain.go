package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("TAHSEEL_TEST_MODE", "1")
		if os.Getenv("WEBHOOK_SECRET") == "" {
			_ = os.Setenv("WEBHOOK_SECRET", "whsec_test")
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
