package react

import (
	"time"

	"scalpel/internal/gateway/provider"
	"scalpel/internal/tool"
)

// 中文说明：
// LoopState 是一次推理循环的唯一事实来源。所有更新都是"复制后
// 返回新值"，调用方绝不原地修改；停止条件的求值因此是纯函数。
// 会话与工具记忆都有上限，防止无界增长。

// ToolMemory 工具调用记录。
type ToolMemory struct {
	Tool      string
	Result    tool.Result
	Timestamp time.Time
}

type LoopState struct {
	Step         int
	Mode         tool.Mode
	Conversation []provider.Message
	Memory       []ToolMemory
	ToolErrors   int
	ExtraGrants  int

	historyMax int
	memoryMax  int
	cache      *Cache
	now        func() time.Time
}

// StateLimits 历史与记忆的裁剪上限。
type StateLimits struct {
	HistoryMax int
	MemoryMax  int
}

func DefaultStateLimits() StateLimits {
	return StateLimits{HistoryMax: 24, MemoryMax: 16}
}

func NewLoopState(mode tool.Mode, limits StateLimits) LoopState {
	if limits.HistoryMax <= 0 {
		limits.HistoryMax = 24
	}
	if limits.MemoryMax <= 0 {
		limits.MemoryMax = 16
	}
	return LoopState{
		Mode:       mode,
		historyMax: limits.HistoryMax,
		memoryMax:  limits.MemoryMax,
		cache:      NewCache(),
		now:        time.Now,
	}
}

// Cache 返回循环内共享的请求-结果缓存（循环实例私有）。
func (s LoopState) Cache() *Cache { return s.cache }

// WithModelResponse 步数+1 并追加一条 assistant 消息。
func (s LoopState) WithModelResponse(msg provider.Message) LoopState {
	next := s.clone()
	next.Step++
	next.Conversation = append(next.Conversation, msg)
	next.trim()
	return next
}

// WithToolResult 追加工具结果与记忆条目；失败结果累计错误计数。
// 带 ID 的调用以 tool 消息回传（协议要求 tool_call_id 回指发起方）；
// 从文本里启发式解析出的调用没有 ID，只能降级成 user 消息反馈。
func (s LoopState) WithToolResult(tc *provider.ToolCall, content string, res tool.Result) LoopState {
	next := s.clone()
	if tc.ID != "" {
		next.Conversation = append(next.Conversation, provider.Message{
			Role:       provider.RoleTool,
			Name:       tc.Name,
			ToolCallID: tc.ID,
			Content:    content,
		})
	} else {
		next.Conversation = append(next.Conversation, provider.Message{
			Role:    provider.RoleUser,
			Content: "Result of " + tc.Name + ": " + content,
		})
	}
	next.Memory = append(next.Memory, ToolMemory{
		Tool:      tc.Name,
		Result:    res,
		Timestamp: next.now(),
	})
	if !res.Success {
		next.ToolErrors++
	}
	next.trim()
	return next
}

// WithExtraGrant 记录一次软上限之外的延长。
func (s LoopState) WithExtraGrant() LoopState {
	next := s.clone()
	next.ExtraGrants++
	return next
}

func (s LoopState) clone() LoopState {
	next := s
	next.Conversation = make([]provider.Message, len(s.Conversation))
	copy(next.Conversation, s.Conversation)
	next.Memory = make([]ToolMemory, len(s.Memory))
	copy(next.Memory, s.Memory)
	if next.now == nil {
		next.now = time.Now
	}
	return next
}

func (s *LoopState) trim() {
	if len(s.Conversation) > s.historyMax {
		cut := len(s.Conversation) - s.historyMax
		// 不能把 tool 消息和发起它的 assistant 消息切开：开头悬空的
		// tool_call_id 会让下一次补全请求整体被拒。
		for cut < len(s.Conversation) && s.Conversation[cut].Role == provider.RoleTool {
			cut++
		}
		s.Conversation = s.Conversation[cut:]
	}
	if len(s.Memory) > s.memoryMax {
		s.Memory = s.Memory[len(s.Memory)-s.memoryMax:]
	}
}

// LastAssistantText 返回最近一条有实质内容、且不是工具调用的
// assistant 消息文本；没有则返回空串。
func (s LoopState) LastAssistantText() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		msg := s.Conversation[i]
		if msg.Role != provider.RoleAssistant {
			continue
		}
		if len(msg.ToolCalls) > 0 {
			continue
		}
		if len(msg.Content) >= 20 {
			return msg.Content
		}
	}
	return ""
}
