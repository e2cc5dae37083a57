package storage

import (
	"path"
	"path/filepath"
	"strings"
)

const DefaultPrefix = "outputs"

// Artifact is one rendered invocation output bound for the bucket.
type Artifact struct {
	InvocationID string
	Node         string
	Name         string
	ContentType  string
	Data         []byte
}

// ArtifactKey lays artifacts out as <prefix>/<invocation>/<file>. Both the
// invocation ID and the file name are reduced to a safe token set.
func ArtifactKey(prefix, invocationID, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, CleanToken(invocationID), CleanFileName(name))
}

// ContentTypeFor guesses the media type of an artifact from its extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".cube":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func artifactMetadata(a Artifact) map[string]string {
	meta := map[string]string{"invocation-id": a.InvocationID}
	if a.Node != "" {
		meta["node"] = a.Node
	}
	return meta
}

func CleanFileName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		return CleanToken(base)
	}
	return CleanToken(base) + "." + CleanToken(strings.TrimPrefix(ext, "."))
}

func CleanToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
