// Package figures resolves bare image references against a growing list of
// search directories and remembers which images a filter run has rewritten.
package figures

import (
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Resolver maps image names to paths. Its directory list only grows: later
// \graphicspath directives and metadata add to it, nothing removes from it.
type Resolver struct {
	fs   afero.Fs
	dirs []string
	ext  string
}

// NewResolver returns a resolver probing fs. A nil fs means the OS filesystem.
func NewResolver(fs afero.Fs, dirs []string, ext string) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	r := &Resolver{fs: fs}
	r.AddDirs(dirs...)
	r.SetExt(ext)
	return r
}

// AddDirs appends directories not already known, keeping order.
func (r *Resolver) AddDirs(dirs ...string) {
	for _, d := range dirs {
		d = strings.TrimSpace(d)
		if d == "" || r.hasDir(d) {
			continue
		}
		r.dirs = append(r.dirs, d)
	}
}

func (r *Resolver) hasDir(d string) bool {
	for _, x := range r.dirs {
		if x == d {
			return true
		}
	}
	return false
}

// SetExt sets the extension override. An empty ext keeps the current one.
func (r *Resolver) SetExt(ext string) {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.ext = ext
}

// Dirs returns a copy of the search directories.
func (r *Resolver) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Ext returns the extension override, with its leading dot, or "".
func (r *Resolver) Ext() string {
	return r.ext
}

// Resolve returns the path for name. The directory part of name is dropped
// and the extension override applied. With one search directory the result
// is joined to it without probing; with several, the first directory holding
// the file wins and the first directory is the fallback. Without any search
// directory name is returned unchanged. Resolve never fails.
func (r *Resolver) Resolve(name string) string {
	if len(r.dirs) == 0 {
		return name
	}
	candidate := path.Base(strings.TrimSpace(name))
	if r.ext != "" {
		candidate = strings.TrimSuffix(candidate, path.Ext(candidate)) + r.ext
	}
	if len(r.dirs) == 1 {
		return join(r.dirs[0], candidate)
	}
	for _, d := range r.dirs {
		p := join(d, candidate)
		if ok, err := afero.Exists(r.fs, p); err == nil && ok {
			return p
		}
	}
	return join(r.dirs[0], candidate)
}

// join keeps a directory's own prefix (e.g. "{attach}/figures/") intact and
// only ensures a single slash before the file name.
func join(dir, file string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + file
	}
	return dir + "/" + file
}
