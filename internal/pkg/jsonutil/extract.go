package jsonutil

import (
	"strings"
)

// 中文说明：
// 从模型自由文本中提取 JSON 对象。模型经常把 JSON 包在 ``` 代码块里，
// 或混在前后说明文字中；这里用括号配额计数做保守提取，不做任何解析。

const codeFence = "```"

// ExtractObject 提取首个完整 JSON 对象。
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := extractFromFence(raw); ok {
		return block, true
	}
	return scanBalanced(raw)
}

func extractFromFence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	// 跳过 ```json 这类语言标注行
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.Contains(first, "{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", false
	}
	return scanBalanced(block)
}

// scanBalanced 从首个 { 开始做深度计数，字符串内的括号不参与配额。
func scanBalanced(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
