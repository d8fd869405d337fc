// Package stress produces a bounded window of CPU load so resource
// monitoring and autoscaling behavior can be observed from outside.
package stress

import "time"

type Result struct {
	Elapsed    time.Duration
	Iterations uint64
}

// sink defeats dead-code elimination of the burn loop.
var sink uint64

// Burn spins the CPU for roughly d and reports how long it actually
// ran. It mutates nothing and always runs to completion; callers under
// a single-worker deployment must tolerate the stall.
func Burn(d time.Duration) Result {
	start := time.Now()
	var iters, acc uint64
	for time.Since(start) < d {
		// one slice per check keeps the time comparison off the hot path
		for i := uint64(0); i < 1000; i++ {
			acc += i * i
		}
		iters++
	}
	sink = acc
	return Result{Elapsed: time.Since(start), Iterations: iters}
}
