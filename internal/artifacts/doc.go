// Package artifacts uploads finished videos and their metadata summaries to
// S3-compatible object storage. Uploads are strictly optional: when no bucket
// is configured the disabled uploader is used and every call is a no-op.
package artifacts
