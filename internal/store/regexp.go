package store

import (
	"fmt"
	"regexp"
	"sync"
)

// regexpCache backs the SQL regexp() function. Patterns are compiled once
// per store.
type regexpCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func newRegexpCache() *regexpCache {
	return &regexpCache{compiled: make(map[string]*regexp.Regexp)}
}

// match implements regexp(pattern, value). NULL values never match.
func (c *regexpCache) match(pattern string, value any) (bool, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return false, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}

	re, err := c.get(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func (c *regexpCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp %q: %w", pattern, err)
	}
	c.compiled[pattern] = re
	return re, nil
}
