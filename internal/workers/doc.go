/*
Package workers sizes worker pools for containerized deployments.

runtime.NumCPU reports the host's CPUs, so a pod limited to 2 cores on a
64-core node would start 64 workers. GOMAXPROCS follows the cgroup CPU quota
(Go 1.19+), and Count builds on it:

	sem := semaphore.NewWeighted(int64(workers.ForCPU(8)))

Thumbnail generation decodes whole images into memory, so bounding it by CPU
count also bounds peak memory. Set THUMBNAIL_WORKERS to pin the value.
*/
package workers
