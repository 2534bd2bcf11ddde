package util

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// NormalizePatternPath cleans and normalizes paths for matcher/pattern usage.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// CompileGlobs compiles slash-separated exclusion patterns.
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// MatchRel reports whether any pattern matches the workspace-relative path.
// Matching is retried with a leading slash so that patterns anchored with
// "**/" also hit entries at the workspace root. A trailing slash on rel is
// preserved, letting directory patterns like "**/node_modules/**" match the
// directory entry itself.
func MatchRel(globs []glob.Glob, rel string) bool {
	trailing := strings.HasSuffix(rel, "/")
	rel = NormalizePatternPath(rel)
	if trailing {
		rel += "/"
	}
	for _, g := range globs {
		if g.Match(rel) || g.Match("/"+rel) {
			return true
		}
	}
	return false
}
