package match

import (
	"regexp"
	"strings"
	"sync"
)

// Wildcard 通配符标记，匹配任意长度（含空）的字符序列
const Wildcard = "%"

var (
	cacheMu sync.RWMutex
	cache   = map[string]*regexp.Regexp{}
)

// Matches 判断 value 是否命中 pattern
// 空 pattern 匹配一切；含 % 的 pattern 编译为大小写不敏感的全锚定匹配，
// 编译失败时退化为去掉 % 后的大小写不敏感子串包含；不含 % 为子串包含
func Matches(value, pattern string) bool {
	if pattern == "" {
		return true
	}
	if strings.Contains(pattern, Wildcard) {
		re, err := compile(pattern)
		if err != nil {
			return containsFold(value, strings.ReplaceAll(pattern, Wildcard, ""))
		}
		return re.MatchString(value)
	}
	return containsFold(value, pattern)
}

func compile(pattern string) (*regexp.Regexp, error) {
	cacheMu.RLock()
	re, ok := cache[pattern]
	cacheMu.RUnlock()
	if ok {
		return re, nil
	}
	parts := strings.Split(pattern, Wildcard)
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	re, err := regexp.Compile("(?i)^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache[pattern] = re
	cacheMu.Unlock()
	return re, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
