// Package source provides the named inputs of a bundle: local files and files
// stored in GitHub repositories.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ldemailly/luabundle/bundle"
)

// File is a local source. Name is the path as listed, Path the resolved one.
type File struct {
	name string
	Path string
}

func NewFile(name, path string) *File {
	return &File{name: name, Path: path}
}

func (f *File) Name() string { return f.name }

func (f *File) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Resolver turns source names into sources, keeping their order.
type Resolver struct {
	// BaseDir anchors relative local paths, usually the manifest directory.
	BaseDir string
	// GitHub is used by github: sources; may be nil when there are none.
	GitHub *ClientWrapper
}

// IsGitHub reports whether name designates a GitHub source.
func IsGitHub(name string) bool {
	return strings.HasPrefix(name, GitHubPrefix)
}

// AnyGitHub reports whether one of names is a GitHub source.
func AnyGitHub(names []string) bool {
	for _, n := range names {
		if IsGitHub(n) {
			return true
		}
	}
	return false
}

func (r *Resolver) Resolve(names []string) ([]bundle.Source, error) {
	sources := make([]bundle.Source, 0, len(names))
	for _, name := range names {
		if IsGitHub(name) {
			g, err := ParseGitHub(name)
			if err != nil {
				return nil, err
			}
			g.client = r.GitHub
			sources = append(sources, g)
			continue
		}
		path := filepath.FromSlash(name)
		if !filepath.IsAbs(path) && r.BaseDir != "" {
			path = filepath.Join(r.BaseDir, path)
		}
		sources = append(sources, NewFile(name, path))
	}
	return sources, nil
}

// LocalPaths lists the files behind the local sources, for watching.
func LocalPaths(sources []bundle.Source) []string {
	var paths []string
	for _, s := range sources {
		if f, ok := s.(*File); ok {
			paths = append(paths, f.Path)
		}
	}
	return paths
}
