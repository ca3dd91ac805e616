package xweb

import (
	"regexp"
	"strings"
)

// ExcludeURLs compiles the given regular expression patterns into an
// exclusion predicate. A URL is excluded when any pattern matches it.
// Empty patterns are ignored.
func ExcludeURLs(patterns ...string) (func(url string) bool, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}

		compiled = append(compiled, re)
	}

	return func(url string) bool {
		for _, re := range compiled {
			if re.MatchString(url) {
				return true
			}
		}
		return false
	}, nil
}
