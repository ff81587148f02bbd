// Package blobstore abstracts the object bucket the pipeline reads from and
// writes to, including the finalize-event stream that triggers stages.
package blobstore
