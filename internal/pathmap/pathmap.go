// Package pathmap maps public proxy paths onto the upstream's /api/ namespace.
package pathmap

import "strings"

// APIPrefix is the namespace every upstream endpoint lives under.
const APIPrefix = "/api/"

// DefaultPath is the upstream resource served for the root path.
const DefaultPath = "/api/tags"

// Rewrite returns the upstream path for a public path:
//
//	/api/...  unchanged
//	/         /api/tags
//	/x        /api/x
//
// An empty path is treated as "/". For paths starting with '/' the result
// always starts with APIPrefix, so Rewrite(Rewrite(p)) == Rewrite(p).
func Rewrite(path string) string {
	switch {
	case strings.HasPrefix(path, APIPrefix):
		return path
	case path == "/" || path == "":
		return DefaultPath
	default:
		return "/api" + path
	}
}
