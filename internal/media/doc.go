// Package media resolves post media references into publishable assets.
//
// A reference is either a path (relative to the configured media directory,
// or absolute) or "s3://<key>" for an object in the configured bucket. Local
// files are checked for readability; objects are stat'ed and handed to the
// platform as presigned GET URLs.
package media
