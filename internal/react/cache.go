package react

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"scalpel/internal/tool"
)

// 中文说明：
// 请求-结果缓存。键是 (工具名, 规范化参数) 的确定性编码：
// 参数键排序、字母数字字符串值统一大写，保证 {symbol:"nifty"} 与
// {Symbol:"NIFTY"} 命中同一条目。命中时完全跳过工具执行。

type Cache struct {
	mu      sync.Mutex
	entries map[string]tool.Result
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]tool.Result)}
}

// Key 生成确定性缓存键。
func Key(toolName string, args map[string]any) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(toolName)))
	b.WriteByte('|')

	keys := make([]string, 0, len(args))
	normalized := make(map[string]any, len(args))
	for k, v := range args {
		nk := strings.ToLower(strings.TrimSpace(k))
		keys = append(keys, nk)
		normalized[nk] = normalizeValue(v)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		raw, err := json.Marshal(normalized[k])
		if err != nil {
			b.WriteString("?")
			continue
		}
		b.Write(raw)
	}
	return b.String()
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case string:
		if isAlphaNumeric(t) {
			return strings.ToUpper(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[strings.ToLower(strings.TrimSpace(k))] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func isAlphaNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (c *Cache) Get(toolName string, args map[string]any) (tool.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[Key(toolName, args)]
	return res, ok
}

func (c *Cache) Put(toolName string, args map[string]any, res tool.Result) {
	c.mu.Lock()
	c.entries[Key(toolName, args)] = res
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
