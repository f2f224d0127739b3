/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors.

Upload and cache roots are commonly NFS mounts. When a server-side change
invalidates a handle, the kernel returns ESTALE and a fresh lookup usually
succeeds. Only ESTALE triggers a retry; all other errors fail immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Defaults: 3 retries with exponential backoff from 50ms capped at 500ms.

Metrics are labeled by volume ("uploads", "cache") through a [VolumeResolver]
registered with [SetDefaultVolumeResolver], and recorded through the
[Observer] registered with [SetObserver].
*/
package filesystem
