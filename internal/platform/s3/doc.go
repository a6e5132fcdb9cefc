// Package s3 archives bootstrap artifacts to S3-compatible object storage.
//
// Each run is stored under runs/<run-id>/: the finalized genesis blob, the
// layout document, the waypoints, and a manifest.json describing them. The
// manifest is written last, so a run without one is incomplete.
package s3
