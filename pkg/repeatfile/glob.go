package repeatfile

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob expands a repeat-file pattern. Patterns containing ** or {a,b}
// alternatives go through doublestar.
func Glob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") || strings.Contains(pattern, "{") {
		return doublestar.FilepathGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// Expand resolves every argument to a sorted, de-duplicated list of paths.
// An argument without glob metacharacters is returned as is, so a missing
// file surfaces as ErrFileNotFound from Load rather than being dropped.
func Expand(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		matches, err := Glob(arg)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(out)
	return out, nil
}
