package react

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpel/internal/gateway/provider"
	"scalpel/internal/tool"
)

func TestWithToolResultBindsToolCallID(t *testing.T) {
	state := NewLoopState(tool.ModeAlert, DefaultStateLimits())
	tc := &provider.ToolCall{ID: "call_7", Name: "get_ltp", Arguments: map[string]any{"symbol": "NIFTY"}}

	next := state.WithToolResult(tc, `{"ltp":22000.5}`, tool.Result{Success: true})

	require.Len(t, next.Conversation, 1)
	msg := next.Conversation[0]
	assert.Equal(t, provider.RoleTool, msg.Role)
	assert.Equal(t, "call_7", msg.ToolCallID)
	assert.Equal(t, "get_ltp", msg.Name)
	assert.Empty(t, state.Conversation, "original state stays untouched")
}

func TestWithToolResultWithoutIDFallsBackToUser(t *testing.T) {
	// 从纯文本里启发式解析出的调用没有 ID，不能伪造 tool 消息。
	state := NewLoopState(tool.ModeAlert, DefaultStateLimits())
	tc := &provider.ToolCall{Name: "get_candles"}

	next := state.WithToolResult(tc, "12 candles fetched", tool.Result{Success: true})

	require.Len(t, next.Conversation, 1)
	msg := next.Conversation[0]
	assert.Equal(t, provider.RoleUser, msg.Role)
	assert.Empty(t, msg.ToolCallID)
	assert.Contains(t, msg.Content, "get_candles")
}

func TestWithToolResultCountsFailures(t *testing.T) {
	state := NewLoopState(tool.ModeAlert, DefaultStateLimits())
	tc := &provider.ToolCall{ID: "call_1", Name: "get_ltp"}

	next := state.WithToolResult(tc, "broker unreachable", tool.Result{Success: false, Error: "broker unreachable"})
	next = next.WithToolResult(tc, `{"ltp":22000.5}`, tool.Result{Success: true})

	assert.Equal(t, 1, next.ToolErrors)
	assert.Len(t, next.Memory, 2)
}

func TestTrimNeverOrphansToolMessages(t *testing.T) {
	state := NewLoopState(tool.ModeAlert, StateLimits{HistoryMax: 3, MemoryMax: 16})

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("call_%d", i)
		state = state.WithModelResponse(provider.Message{
			Role:      provider.RoleAssistant,
			ToolCalls: []provider.ToolCall{{ID: id, Name: "get_ltp"}},
		})
		state = state.WithToolResult(&provider.ToolCall{ID: id, Name: "get_ltp"}, "ok", tool.Result{Success: true})
	}

	require.NotEmpty(t, state.Conversation)
	assert.LessOrEqual(t, len(state.Conversation), 3)
	assert.NotEqual(t, provider.RoleTool, state.Conversation[0].Role,
		"history must start at an assistant boundary, never at a dangling tool reply")
}
