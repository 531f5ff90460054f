package source

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ResolveKind identifies what an external resource is needed for.
type ResolveKind uint8

const (
	ResolveDTD ResolveKind = iota
	ResolveParameterEntity
	ResolveGeneralEntity
	ResolveInclude
)

// String returns a short label used in diagnostics.
func (k ResolveKind) String() string {
	switch k {
	case ResolveDTD:
		return "external DTD subset"
	case ResolveParameterEntity:
		return "parameter entity"
	case ResolveGeneralEntity:
		return "external entity"
	case ResolveInclude:
		return "xinclude"
	default:
		return "resource"
	}
}

// ResolveRequest describes a resolution request. SystemID is taken relative
// to BaseSystemID, the system identifier of the referencing resource.
type ResolveRequest struct {
	BaseSystemID string
	SystemID     string
	PublicID     string
	Kind         ResolveKind
}

// Resolver opens external resources and reports their canonical system IDs.
type Resolver interface {
	Resolve(req ResolveRequest) (doc io.ReadCloser, systemID string, err error)
}

// FSResolver resolves resources from an fs.FS with strict path validation.
type FSResolver struct {
	fsys fs.FS
}

// NewFSResolver creates a resolver backed by the provided filesystem.
func NewFSResolver(fsys fs.FS) *FSResolver {
	return &FSResolver{fsys: fsys}
}

// Resolve implements Resolver.
func (r *FSResolver) Resolve(req ResolveRequest) (io.ReadCloser, string, error) {
	if r == nil || r.fsys == nil {
		return nil, "", fmt.Errorf("no filesystem configured")
	}
	if req.SystemID == "" {
		return nil, "", fs.ErrNotExist
	}
	systemID, err := resolveSystemID(req.BaseSystemID, req.SystemID)
	if err != nil {
		return nil, "", err
	}
	f, err := r.fsys.Open(systemID)
	if err != nil {
		return nil, "", err
	}
	return f, systemID, nil
}

func resolveSystemID(baseSystemID, location string) (string, error) {
	location = strings.TrimPrefix(location, "file:")
	if strings.Contains(location, "\\") {
		return "", fmt.Errorf("system ID contains backslash: %q", location)
	}
	if strings.HasPrefix(location, "/") {
		return "", fmt.Errorf("system ID must be relative: %q", location)
	}
	segments := strings.Split(location, "/")
	if slices.Contains(segments, "") {
		return "", fmt.Errorf("invalid system ID segment: %q", location)
	}
	joined := path.Clean(location)
	if baseDir := baseDirSystemID(baseSystemID); baseDir != "" {
		joined = path.Clean(baseDir + "/" + location)
	}
	if joined == "." {
		return "", fmt.Errorf("system ID is empty")
	}
	if strings.HasPrefix(joined, "../") || joined == ".." {
		return "", fmt.Errorf("system ID escapes root: %q", location)
	}
	return joined, nil
}

func baseDirSystemID(systemID string) string {
	if systemID == "" || strings.Contains(systemID, "\\") {
		return ""
	}
	idx := strings.LastIndex(systemID, "/")
	if idx == -1 {
		return ""
	}
	return systemID[:idx]
}

const defaultHTTPTimeout = 30 * time.Second

// OSResolver resolves local paths relative to the referencing document's
// directory, file: URIs, and http(s) URLs.
type OSResolver struct {
	client *http.Client
}

// NewOSResolver returns a resolver for the local filesystem and the web.
func NewOSResolver() *OSResolver {
	return &OSResolver{client: &http.Client{Timeout: defaultHTTPTimeout}}
}

// Resolve implements Resolver.
func (r *OSResolver) Resolve(req ResolveRequest) (io.ReadCloser, string, error) {
	if req.SystemID == "" {
		return nil, "", fs.ErrNotExist
	}
	target := Join(req.BaseSystemID, req.SystemID)
	if isHTTP(target) {
		return r.get(target)
	}
	if strings.HasPrefix(target, "file:") {
		u, err := url.Parse(target)
		if err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", target, err)
		}
		target = filepath.FromSlash(u.Path)
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, "", err
	}
	return f, target, nil
}

func (r *OSResolver) get(target string) (io.ReadCloser, string, error) {
	client := http.DefaultClient
	if r != nil && r.client != nil {
		client = r.client
	}
	resp, err := client.Get(target) //nolint:noctx // resolution has no caller context
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("get %s: %s", target, resp.Status)
	}
	return resp.Body, target, nil
}

// Join resolves ref against the system identifier base. URLs resolve as
// URLs, everything else as local paths relative to base's directory.
func Join(base, ref string) string {
	if isHTTP(ref) || strings.HasPrefix(ref, "file:") || filepath.IsAbs(ref) {
		return ref
	}
	if isHTTP(base) {
		b, err := url.Parse(base)
		if err != nil {
			return ref
		}
		u, err := b.Parse(ref)
		if err != nil {
			return ref
		}
		return u.String()
	}
	if base == "" {
		return filepath.Clean(ref)
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref))
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
