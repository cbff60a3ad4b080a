package lib

/* thread.go contains functions useful for multi-threading. */

import (
	"fmt"
	"runtime"
)

// SetThreads sets the number of threads used by the process. n <= 0 means
// every core.
func SetThreads(n int) error {
	if n <= 0 {
		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}
	if n > runtime.NumCPU() {
		return fmt.Errorf("%d threads requested, but your system only has "+
			"%d cores per node. If you want cfdem to use the maximum "+
			"number of threads per node, set Threads = -1", n,
			runtime.NumCPU())
	}
	runtime.GOMAXPROCS(n)
	return nil
}
