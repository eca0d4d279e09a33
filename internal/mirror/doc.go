// Package mirror publishes finished track artifacts to S3-compatible object
// storage so downstream consumers can serve them without local disk access.
package mirror
