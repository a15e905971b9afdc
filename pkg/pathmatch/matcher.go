// Package pathmatch provides the canonical path algebra used for ACL rule
// lookup and inheritance traversal.
package pathmatch

import (
	"fmt"
	"strings"
)

// ErrInvalidPath is returned when a path fails the traversal guard.
var ErrInvalidPath = fmt.Errorf("invalid path")

// RejectTraversal rejects any path containing the substring "..", anywhere,
// before segment-wise processing. This is deliberately blunt: a segment
// legitimately named "a..b" is also rejected. Callers that want a
// segment-aware policy can swap this function without touching Normalize.
func RejectTraversal(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("%w: traversal sequence in %q", ErrInvalidPath, path)
	}
	return nil
}

// Normalize converts a raw path into canonical form: forward slashes only,
// no repeated slashes, a single leading slash, no trailing slash (except
// root), "." segments dropped.
func Normalize(path string) (string, error) {
	if err := RejectTraversal(path); err != nil {
		return "", err
	}

	path = strings.ReplaceAll(path, "\\", "/")

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(segments, "/"), nil
}

// ParentPath returns the path with its last segment removed. Root's parent
// is root.
func ParentPath(path string) (string, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return "", err
	}
	if normalized == "/" {
		return "/", nil
	}

	idx := strings.LastIndex(normalized, "/")
	if idx <= 0 {
		return "/", nil
	}
	return normalized[:idx], nil
}

// ParentPaths returns every ancestor of the path from its immediate parent
// up to and including root. Root has no parents.
func ParentPaths(path string) ([]string, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return nil, err
	}

	var parents []string
	for normalized != "/" {
		parent, err := ParentPath(normalized)
		if err != nil {
			return nil, err
		}
		parents = append(parents, parent)
		normalized = parent
	}
	return parents, nil
}

// Depth returns the number of segments in the normalized path. Root is 0.
func Depth(path string) (int, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return 0, err
	}
	if normalized == "/" {
		return 0, nil
	}
	return strings.Count(normalized, "/"), nil
}

// Ancestors returns the normalized path itself followed by its parents,
// most specific first, root last.
func Ancestors(path string) ([]string, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return nil, err
	}

	parents, err := ParentPaths(normalized)
	if err != nil {
		return nil, err
	}
	return append([]string{normalized}, parents...), nil
}

// MatchesPattern reports whether two paths are equal after normalization.
// Invalid paths never match.
func MatchesPattern(path, pattern string) bool {
	p, err := Normalize(path)
	if err != nil {
		return false
	}
	q, err := Normalize(pattern)
	if err != nil {
		return false
	}
	return p == q
}

// IsWithinPath reports whether path is strictly inside parent. A path is
// never within itself; root contains every non-root path.
func IsWithinPath(path, parent string) bool {
	p, err := Normalize(path)
	if err != nil {
		return false
	}
	q, err := Normalize(parent)
	if err != nil {
		return false
	}

	if q == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, q+"/")
}
