package provider

import (
	"context"
	"errors"
	"fmt"
)

// 消息角色。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 聊天消息。assistant 消息可携带结构化工具调用；
// tool 消息必须带 ToolCallID 回指 assistant 消息里的那次调用，
// 否则 OpenAI/DeepSeek 会拒绝整个请求。
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall 模型发起的一次工具调用。
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Reply 单次补全的结果。
type Reply struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// ChatClient 聊天补全客户端。tools 为 OpenAI function 描述符。
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, tools []map[string]any) (Reply, error)
}

// ReasoningError 模型端点不可达或返回无法解析的内容。
// 该错误非致命：调用方应回退到确定性决策路径。
type ReasoningError struct {
	Op  string
	Err error
}

func (e *ReasoningError) Error() string {
	return fmt.Sprintf("reasoning %s: %v", e.Op, e.Err)
}

func (e *ReasoningError) Unwrap() error { return e.Err }

func IsReasoningError(err error) bool {
	var re *ReasoningError
	return errors.As(err, &re)
}
