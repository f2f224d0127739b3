package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv pins the thumbnail worker count regardless of CPU limits.
const OverrideEnv = "THUMBNAIL_WORKERS"

// Count returns multiplier workers per available CPU, at least one and at
// most limit (0 for no cap). GOMAXPROCS is used rather than NumCPU since it
// follows container CPU quotas.
//
// A positive THUMBNAIL_WORKERS overrides the computed value; limit still applies.
func Count(multiplier float64, limit int) int {
	n := 0
	if override := os.Getenv(OverrideEnv); override != "" {
		if v, err := strconv.Atoi(override); err == nil && v > 0 {
			n = v
		}
	}
	if n == 0 {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}

	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU sizes a pool of CPU-bound tasks such as image decoding: one
// worker per CPU.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
