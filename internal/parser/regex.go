package parser

import (
	"fmt"
	"regexp"
	"sync"
)

var patternCache sync.Map // pattern string -> *regexp.Regexp

// Compile returns a cached compiled pattern.
func Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// FindFirst returns the first capture group of the first match of pattern
// in body. Patterns without a group yield the whole match.
func FindFirst(pattern string, body []byte) (string, bool) {
	re, err := Compile(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindSubmatch(body)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return string(m[1]), true
	}
	return string(m[0]), true
}

// FindFirstOf tries each pattern in order and returns the first hit.
func FindFirstOf(patterns []string, body []byte) (string, bool) {
	for _, p := range patterns {
		if v, ok := FindFirst(p, body); ok {
			return v, true
		}
	}
	return "", false
}
