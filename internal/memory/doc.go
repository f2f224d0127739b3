/*
Package memory sets the Go soft memory limit (GOMEMLIMIT) inside containers.

The Go runtime does not see a container's memory limit, so without
GOMEMLIMIT the heap can grow until the kernel OOM-kills the process. Large
ZIP imports and image decoding make pichost prone to such spikes.

Configure takes the limit from, in order:

  - GOMEMLIMIT in the environment, left untouched
  - the memory_limit setting (MEMORY_LIMIT), for example from the
    Kubernetes Downward API
  - the cgroup v2 file /sys/fs/cgroup/memory.max

and applies memory_ratio (MEMORY_RATIO, default 0.85) of it. The remaining
share is headroom for libvips, whose allocations happen in C and are not
counted by the Go runtime.

	env:
	  - name: MEMORY_LIMIT
	    valueFrom:
	      resourceFieldRef:
	        resource: limits.memory
*/
package memory
