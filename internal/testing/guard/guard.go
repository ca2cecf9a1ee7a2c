// Package guard flips the runtime into test mode when imported for side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LICENSEHUB_TEST_MODE") == "" {
			_ = os.Setenv("LICENSEHUB_TEST_MODE", "1")
		}
	})
}
