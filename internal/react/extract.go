package react

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"scalpel/internal/gateway/provider"
	"scalpel/internal/pkg/jsonutil"
)

// 中文说明：
// 模型输出解析。上游模型并不总是走结构化 tool_calls 通道，经常把
// 调用意图写成正文里的 JSON 或自然语言。这里实现一条固定优先级
// 的解析链（职责链），每级都有明确的放弃条件：
//   1. 原生 tool_calls 字段
//   2. 正文即 JSON 时的结构化字段匹配（tool/name + arguments）
//   3. 括号计数提取正文中夹杂的 JSON 后再做字段匹配
//   4. 关键字猜测：正文里出现已注册工具名
//   5. 终局：按最终答案/普通文本处理
// 该路径天然是启发式的，宁可放弃也不做激进猜测。

// Kind 解析结果类别。
type Kind int

const (
	KindText Kind = iota
	KindToolCall
	KindFinal
)

// Parsed 规整后的模型回复。Confidence<0 表示模型未报告置信度。
type Parsed struct {
	Kind          Kind
	ToolCall      *provider.ToolCall
	Text          string
	Confidence    float64
	WantsContinue bool
}

// finalMarkers 判定"明确最终答案"的标记。
var finalMarkers = []string{
	"final answer",
	"final recommendation",
	"最终结论",
	"no trade",
	"recommendation:",
}

// concluders 长文本中出现即视为收尾语气。
var concluders = []string{
	"in conclusion",
	"to summarize",
	"overall,",
	"therefore",
	"综上",
}

var continueMarkers = []string{
	"need more",
	"let me check",
	"next, i will",
	"one more step",
}

const longTextRunes = 400

// Parse 把原始回复解析为工具调用、普通文本或最终答案。
// knownTools 用于第 4 级的关键字猜测与调用名校验。
func Parse(reply provider.Reply, knownTools []string) Parsed {
	// 1) 原生结构化通道
	if len(reply.ToolCalls) > 0 {
		tc := reply.ToolCalls[0]
		if tc.Arguments == nil {
			tc.Arguments = map[string]any{}
		}
		return Parsed{Kind: KindToolCall, ToolCall: &tc, Confidence: -1}
	}

	text := strings.TrimSpace(reply.Content)
	confidence := extractConfidence(text)

	// 2) 正文整体就是 JSON
	if gjson.Valid(text) {
		if tc, ok := toolCallFromJSON(text, knownTools); ok {
			return Parsed{Kind: KindToolCall, ToolCall: tc, Confidence: confidence}
		}
	}

	// 3) 正文混杂 JSON：括号计数提取后重试字段匹配
	if block, ok := jsonutil.ExtractObject(text); ok && gjson.Valid(block) {
		if tc, ok := toolCallFromJSON(block, knownTools); ok {
			return Parsed{Kind: KindToolCall, ToolCall: tc, Confidence: confidence}
		}
	}

	// 4) 关键字猜测：正文点名了某个已注册工具
	if tc, ok := toolCallFromKeyword(text, knownTools); ok {
		return Parsed{Kind: KindToolCall, ToolCall: tc, Confidence: confidence}
	}

	// 5) 终局判定
	parsed := Parsed{Kind: KindText, Text: text, Confidence: confidence}
	lower := strings.ToLower(text)
	for _, marker := range finalMarkers {
		if strings.Contains(lower, marker) {
			parsed.Kind = KindFinal
			return parsed
		}
	}
	if reply.FinishReason == "stop" && len([]rune(text)) >= longTextRunes {
		for _, marker := range concluders {
			if strings.Contains(lower, marker) {
				parsed.Kind = KindFinal
				return parsed
			}
		}
	}
	for _, marker := range continueMarkers {
		if strings.Contains(lower, marker) {
			parsed.WantsContinue = true
			break
		}
	}
	return parsed
}

// toolCallFromJSON 匹配 {"tool":..,"arguments":..} 及其常见变体。
func toolCallFromJSON(raw string, knownTools []string) (*provider.ToolCall, bool) {
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil, false
	}
	var name string
	for _, field := range []string{"tool", "tool_name", "function", "name", "action"} {
		v := parsed.Get(field)
		if v.Type == gjson.String {
			name = strings.TrimSpace(v.String())
			if name != "" {
				break
			}
		}
	}
	if name == "" || !isKnownTool(name, knownTools) {
		return nil, false
	}
	args := map[string]any{}
	for _, field := range []string{"arguments", "args", "parameters", "params", "input"} {
		v := parsed.Get(field)
		if v.IsObject() {
			if err := json.Unmarshal([]byte(v.Raw), &args); err != nil {
				args = map[string]any{}
			}
			break
		}
	}
	return &provider.ToolCall{Name: name, Arguments: args}, true
}

// toolCallFromKeyword 在正文中寻找被点名的工具。命中多个则放弃，
// 避免把讨论误判为调用意图。
func toolCallFromKeyword(text string, knownTools []string) (*provider.ToolCall, bool) {
	lower := strings.ToLower(text)
	var hit string
	for _, name := range knownTools {
		if strings.Contains(lower, strings.ToLower(name)) {
			if hit != "" {
				return nil, false
			}
			hit = name
		}
	}
	if hit == "" {
		return nil, false
	}
	// 仅当文字带有调用语气时才猜测
	intent := false
	for _, kw := range []string{"call", "invoke", "use", "run", "调用", "执行"} {
		if strings.Contains(lower, kw) {
			intent = true
			break
		}
	}
	if !intent {
		return nil, false
	}
	args := map[string]any{}
	if block, ok := jsonutil.ExtractObject(text); ok {
		_ = json.Unmarshal([]byte(block), &args)
	}
	return &provider.ToolCall{Name: hit, Arguments: args}, true
}

func isKnownTool(name string, knownTools []string) bool {
	for _, t := range knownTools {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// extractConfidence 从正文或内嵌 JSON 读取模型自报置信度，
// 支持 0-1 与 0-100 两种刻度；取不到返回 -1。
func extractConfidence(text string) float64 {
	if block, ok := jsonutil.ExtractObject(text); ok && gjson.Valid(block) {
		if v := gjson.Get(block, "confidence"); v.Exists() && v.Type == gjson.Number {
			return normalizeConfidence(v.Float())
		}
	}
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "confidence")
	if idx == -1 {
		return -1
	}
	rest := lower[idx+len("confidence"):]
	rest = strings.TrimLeft(rest, ": =")
	var val float64
	if n, err := fmt.Sscanf(rest, "%f", &val); err != nil || n == 0 {
		return -1
	}
	return normalizeConfidence(val)
}

func normalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
