package memory

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"pichost/internal/logging"
)

const (
	// DefaultRatio is the share of the container limit given to the Go heap.
	// The rest is left to libvips, which allocates outside the Go runtime.
	DefaultRatio = 0.85

	// DefaultCgroupFile holds the cgroup v2 memory limit of the container.
	DefaultCgroupFile = "/sys/fs/cgroup/memory.max"
)

// Limit sources reported in Result.Source.
const (
	SourceEnv    = "GOMEMLIMIT"
	SourceConfig = "config"
	SourceCgroup = "cgroup"
	SourceNone   = "none"
)

// Options selects where the container memory limit comes from.
type Options struct {
	// Limit is the container memory limit in bytes. Zero reads CgroupFile.
	Limit int64
	// Ratio of the limit to use as GOMEMLIMIT, in (0, 1]. Zero selects DefaultRatio.
	Ratio float64
	// CgroupFile is consulted when Limit is zero. Empty disables the lookup.
	CgroupFile string
}

// Result describes the limit that was applied.
type Result struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Configure sets the Go soft memory limit from opts. An explicit GOMEMLIMIT
// in the environment always wins and is only reported. Call it early in
// main, before large allocations.
func Configure(opts Options) Result {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := Result{Source: SourceEnv}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	limit, source := opts.Limit, SourceConfig
	if limit <= 0 {
		limit, source = 0, SourceNone
		if opts.CgroupFile != "" {
			l, err := readCgroupLimit(opts.CgroupFile)
			switch {
			case err == nil && l > 0:
				limit, source = l, SourceCgroup
			case err != nil && !errors.Is(err, os.ErrNotExist):
				logging.Warn("Failed to read memory limit from %s: %v", opts.CgroupFile, err)
			}
		}
	}
	if limit == 0 {
		logging.Debug("No container memory limit found, GOMEMLIMIT left unset")
		return Result{Source: SourceNone}
	}

	ratio := opts.Ratio
	if ratio == 0 {
		ratio = DefaultRatio
	}
	if ratio < 0 || ratio > 1 {
		logging.Warn("Memory ratio %.2f out of range (0.0-1.0), using default %.2f", ratio, DefaultRatio)
		ratio = DefaultRatio
	}

	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s %s limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(limit), source)

	return Result{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// readCgroupLimit parses a cgroup v2 memory.max file. "max" means unlimited
// and yields 0.
func readCgroupLimit(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", s, err)
	}
	return v, nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
