package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("BRICKWORKS_TEST_MODE") == "" {
			_ = os.Setenv("BRICKWORKS_TEST_MODE", "1")
		}
	})
}
