package media

import (
	"mime"
	"path"
	"strings"
)

// Kind distinguishes photo and video posts; the platform uses different
// container parameters for each.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// S3Scheme prefixes media references stored in object storage.
const S3Scheme = "s3://"

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".m4v": {},
}

// Asset is a resolved media reference.
type Asset struct {
	Ref         string
	Kind        Kind
	LocalPath   string
	URL         string
	Size        int64
	ContentType string
}

// Remote reports whether the platform can fetch the asset by URL.
func (a Asset) Remote() bool {
	return a.URL != ""
}

// IsObjectRef reports whether ref points into object storage.
func IsObjectRef(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), S3Scheme)
}

// ObjectKey strips the s3:// prefix from ref.
func ObjectKey(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), S3Scheme)
}

// KindOf classifies a media reference by its extension.
func KindOf(ref string) Kind {
	if _, ok := videoExtensions[extension(ref)]; ok {
		return KindVideo
	}
	return KindImage
}

func extension(ref string) string {
	return strings.ToLower(path.Ext(strings.TrimSpace(ref)))
}

func contentTypeFor(ref string) string {
	if ct := mime.TypeByExtension(extension(ref)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
