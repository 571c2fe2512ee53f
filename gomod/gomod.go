// Package gomod resolves locally referenced Go packages and modules to the
// enclosing module that owns them.
//
// Go module names are slash-separated import paths, and local dependency
// versions are slash-separated relative paths, so all arithmetic here is on
// slash paths regardless of host OS.
package gomod

import (
	"iter"
	"path"
	"strings"
)

// MatchParentModule finds the module that owns name: the longest module name
// that is an exact path-prefix of name. A prefix only counts when it is
// followed by a path separator or the end of the string, so
// "example.com/org" does not own "example.com/organization".
//
// The longest match wins, selecting the most specific enclosing module.
func MatchParentModule(name string, modules iter.Seq[string]) (string, bool) {
	var best string
	var found bool
	for m := range modules {
		if !containsPackage(m, name) {
			continue
		}
		if !found || len(m) > len(best) {
			best, found = m, true
		}
	}
	return best, found
}

func containsPackage(module, name string) bool {
	rest, ok := strings.CutPrefix(name, module)
	if !ok {
		return false
	}
	return rest == "" || strings.HasPrefix(rest, "/")
}

// LocalPath resolves a module-relative version like "./staging/src/foo" or
// "../sibling" against the importing module's name.
func LocalPath(module, relVersion string) string {
	return path.Join(module, relVersion)
}

// RelativePath returns child relative to parent, or "." when they are
// equal. parent must be a path-prefix of child, which callers guarantee by
// obtaining it from [MatchParentModule].
func RelativePath(parent, child string) string {
	if parent == child {
		return "."
	}
	return strings.TrimPrefix(child, parent+"/")
}
