package dirstat

import (
	"path/filepath"
	"sort"
	"strings"
)

// ExtensionSet is an immutable set of case-sensitive tracked extensions, such as ".txt" or ".tar.gz".
type ExtensionSet struct {
	set map[string]struct{}
}

// NewExtensionSet builds a set from the given extensions. Surrounding quotes are stripped
// and empty entries are ignored.
func NewExtensionSet(extensions []string) ExtensionSet {
	set := make(map[string]struct{}, len(extensions))

	for _, e := range extensions { //nolint:varnamelen // e is standard for element in range
		e = strings.Trim(e, "'\"")
		if e == "" {
			continue
		}

		set[e] = struct{}{}
	}

	return ExtensionSet{set: set}
}

// Len returns the number of tracked extensions.
func (s ExtensionSet) Len() int {
	return len(s.set)
}

// Contains reports whether ext is tracked.
func (s ExtensionSet) Contains(ext string) bool {
	_, ok := s.set[ext]

	return ok
}

// List returns the tracked extensions in sorted order.
func (s ExtensionSet) List() []string {
	list := make([]string, 0, len(s.set))
	for ext := range s.set {
		list = append(list, ext)
	}

	sort.Strings(list)

	return list
}

// Match returns the longest tracked extension that is a dot-suffix of the base name of path.
// A leading dot (as in ".bashrc") does not start an extension.
//
// "backup.tar.gz" matches ".tar.gz" when it is tracked, otherwise ".gz".
func (s ExtensionSet) Match(path string) (string, bool) {
	if len(s.set) == 0 {
		return "", false
	}

	name := filepath.Base(path)

	for i := 1; i < len(name); i++ {
		if name[i] != '.' {
			continue
		}

		if ext := name[i:]; s.Contains(ext) {
			return ext, true
		}
	}

	return "", false
}
