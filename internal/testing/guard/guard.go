package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOCKTRAIL_TEST_MODE") == "" {
			_ = os.Setenv("STOCKTRAIL_TEST_MODE", "1")
		}
	})
}
