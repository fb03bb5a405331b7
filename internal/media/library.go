package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"postflow/internal/config"
	"postflow/internal/services"
)

// ObjectInfo is the subset of object metadata the library needs.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStore abstracts the bucket holding s3:// media.
type ObjectStore interface {
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (*url.URL, error)
	Ping(ctx context.Context) error
}

// ErrObjectNotFound is returned by ObjectStore.Stat for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Library resolves media references against the media directory and the
// optional object store.
type Library struct {
	root          string
	publicBaseURL string
	allowed       map[string]struct{}
	objects       ObjectStore
	presignTTL    time.Duration
}

// Option customizes a Library.
type Option func(*Library)

// WithObjectStore overrides the object store, typically with a test double.
func WithObjectStore(store ObjectStore) Option {
	return func(l *Library) {
		l.objects = store
	}
}

// NewLibrary builds a Library from configuration. When S3 is configured a
// MinIO client is created for s3:// references.
func NewLibrary(cfg *config.Config, opts ...Option) (*Library, error) {
	if cfg == nil {
		return nil, errors.New("media library: config is nil")
	}
	lib := &Library{
		root:          cfg.Paths.MediaDir,
		publicBaseURL: cfg.Media.PublicBaseURL,
		allowed:       make(map[string]struct{}, len(cfg.Media.AllowedExtensions)),
		presignTTL:    time.Duration(cfg.Media.PresignExpiry) * time.Second,
	}
	for _, ext := range cfg.Media.AllowedExtensions {
		lib.allowed[strings.ToLower(ext)] = struct{}{}
	}
	for _, opt := range opts {
		opt(lib)
	}
	if lib.objects == nil && cfg.Media.S3Enabled() {
		store, err := NewS3Store(cfg.Media)
		if err != nil {
			return nil, err
		}
		lib.objects = store
	}
	return lib, nil
}

// Root returns the media directory used for relative references.
func (l *Library) Root() string {
	return l.root
}

// ObjectStore returns the configured object store, or nil.
func (l *Library) ObjectStore() ObjectStore {
	return l.objects
}

// Validate checks the shape of ref without touching storage: a non-empty
// path with an allowed extension that stays inside the media directory when
// relative.
func (l *Library) Validate(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return services.Wrap(services.ErrValidation, "media", "validate", "Media reference is empty", nil)
	}
	if len(l.allowed) > 0 {
		if _, ok := l.allowed[extension(ref)]; !ok {
			return services.Wrap(services.ErrValidation, "media", "validate",
				fmt.Sprintf("Unsupported media type %q", extension(ref)), nil)
		}
	}
	if IsObjectRef(ref) {
		if ObjectKey(ref) == "" {
			return services.Wrap(services.ErrValidation, "media", "validate", "Object key is empty", nil)
		}
		return nil
	}
	if !filepath.IsAbs(ref) && !filepath.IsLocal(ref) {
		return services.Wrap(services.ErrValidation, "media", "validate",
			fmt.Sprintf("Relative media path %q escapes the media directory", ref), nil)
	}
	return nil
}

// Exists verifies that ref resolves to readable content.
func (l *Library) Exists(ctx context.Context, ref string) error {
	_, err := l.Resolve(ctx, ref)
	return err
}

// Resolve turns ref into an Asset. Missing content is reported with
// services.ErrNotFound.
func (l *Library) Resolve(ctx context.Context, ref string) (Asset, error) {
	if err := l.Validate(ref); err != nil {
		return Asset{}, err
	}
	ref = strings.TrimSpace(ref)
	if IsObjectRef(ref) {
		return l.resolveObject(ctx, ref)
	}
	return l.resolveLocal(ref)
}

func (l *Library) resolveLocal(ref string) (Asset, error) {
	path := ref
	if !filepath.IsAbs(path) {
		if strings.TrimSpace(l.root) == "" {
			return Asset{}, services.Wrap(services.ErrConfiguration, "media", "resolve",
				"paths.media_dir is not set for relative media references", nil)
		}
		path = filepath.Join(l.root, ref)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Asset{}, services.Wrap(services.ErrNotFound, "media", "resolve",
				fmt.Sprintf("Media file %s does not exist", path), err)
		}
		return Asset{}, services.Wrap(services.ErrExternal, "media", "resolve", "Stat media file", err)
	}
	if info.IsDir() {
		return Asset{}, services.Wrap(services.ErrValidation, "media", "resolve",
			fmt.Sprintf("Media path %s is a directory", path), nil)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Asset{}, services.Wrap(services.ErrConfiguration, "media", "resolve",
			fmt.Sprintf("Media file %s is not readable", path), err)
	}

	asset := Asset{
		Ref:         ref,
		Kind:        KindOf(ref),
		LocalPath:   path,
		Size:        info.Size(),
		ContentType: contentTypeFor(ref),
	}
	if l.publicBaseURL != "" && !filepath.IsAbs(ref) {
		asset.URL = l.publicBaseURL + "/" + (&url.URL{Path: filepath.ToSlash(ref)}).EscapedPath()
	}
	return asset, nil
}

func (l *Library) resolveObject(ctx context.Context, ref string) (Asset, error) {
	if l.objects == nil {
		return Asset{}, services.Wrap(services.ErrConfiguration, "media", "resolve",
			"s3 media reference used but media.s3_endpoint/s3_bucket are not set", nil)
	}
	key := ObjectKey(ref)
	info, err := l.objects.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return Asset{}, services.Wrap(services.ErrNotFound, "media", "resolve",
				fmt.Sprintf("Object %s does not exist", key), err)
		}
		return Asset{}, services.Wrap(services.ErrTransient, "media", "resolve", "Stat object", err)
	}
	signed, err := l.objects.PresignGet(ctx, key, l.presignTTL)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrTransient, "media", "resolve", "Presign object URL", err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = contentTypeFor(ref)
	}
	return Asset{
		Ref:         ref,
		Kind:        KindOf(ref),
		URL:         signed.String(),
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}
