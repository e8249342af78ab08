package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TAHSEEL_TEST_MODE") == "" {
			_ = os.Setenv("TAHSEEL_TEST_MODE", "1")
		}
	})
}
