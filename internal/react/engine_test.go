package react

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpel/internal/brief"
	"scalpel/internal/gateway/provider"
	"scalpel/internal/tool"
)

// scriptedClient 按序回放预置回复。
type scriptedClient struct {
	replies []provider.Reply
	calls   int
	err     error
}

func (c *scriptedClient) Chat(ctx context.Context, messages []provider.Message, tools []map[string]any) (provider.Reply, error) {
	if c.err != nil {
		return provider.Reply{}, c.err
	}
	if c.calls >= len(c.replies) {
		return provider.Reply{}, errors.New("script exhausted")
	}
	r := c.replies[c.calls]
	c.calls++
	return r, nil
}

func quoteRegistry(t *testing.T, executions *int) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry(tool.ModeAlert)
	require.NoError(t, reg.Register(tool.Definition{
		Name:        "quote",
		Description: "returns a fixed observation",
		Params:      map[string]tool.ParamSpec{"symbol": {Type: tool.TypeString, Required: true}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			*executions++
			return map[string]any{"ltp": 22000.5}, nil
		},
	}))
	return reg
}

func TestEngineToolCallThenFinal(t *testing.T) {
	executions := 0
	reg := quoteRegistry(t, &executions)
	client := &scriptedClient{replies: []provider.Reply{
		{ToolCalls: []provider.ToolCall{{Name: "quote", Arguments: map[string]any{"symbol": "NIFTY"}}}},
		{Content: "Final answer: enter the 22100 CE. Confidence: 0.8"},
	}}

	engine := NewEngine(client, reg, nil, DefaultConfig())
	out, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	require.NoError(t, err)

	assert.Equal(t, StopFinalAnswer, out.StopReason)
	assert.Equal(t, 2, out.Steps)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
	assert.Contains(t, out.FinalText, "22100 CE")
	assert.Len(t, out.ToolTrace, 1)
	assert.Equal(t, 1, executions)
}

func TestEngineCacheSkipsRepeatExecution(t *testing.T) {
	executions := 0
	reg := quoteRegistry(t, &executions)
	client := &scriptedClient{replies: []provider.Reply{
		{ToolCalls: []provider.ToolCall{{Name: "quote", Arguments: map[string]any{"symbol": "NIFTY"}}}},
		// 参数大小写不同，规范化后命中同一缓存键
		{ToolCalls: []provider.ToolCall{{Name: "quote", Arguments: map[string]any{"Symbol": "nifty"}}}},
		{Content: "Final answer: wait for confirmation. Confidence: 0.6"},
	}}

	engine := NewEngine(client, reg, nil, DefaultConfig())
	out, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	require.NoError(t, err)

	assert.Equal(t, 1, executions, "identical call must come from cache")
	assert.Len(t, out.ToolTrace, 2, "cached calls still appear in the trace")
}

func TestEngineStepLimit(t *testing.T) {
	executions := 0
	reg := quoteRegistry(t, &executions)
	call := provider.Reply{ToolCalls: []provider.ToolCall{{Name: "quote", Arguments: map[string]any{"symbol": "NIFTY"}}}}
	client := &scriptedClient{replies: []provider.Reply{call, call, call, call}}

	cfg := DefaultConfig()
	cfg.Stop = StopConfig{MaxSteps: 2, ExtraSteps: 0, MinConfidence: 0.3, ErrorThreshold: 5}
	engine := NewEngine(client, reg, nil, cfg)
	out, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	require.NoError(t, err)

	assert.Equal(t, StopStepLimit, out.StopReason)
	assert.Equal(t, 2, out.Steps)
}

func TestEngineStallsTreatedAsFinal(t *testing.T) {
	executions := 0
	reg := quoteRegistry(t, &executions)
	client := &scriptedClient{replies: []provider.Reply{
		{Content: "Thinking about the structure here."},
		{Content: "Still weighing the evidence from the brief and prior results."},
	}}

	engine := NewEngine(client, reg, nil, DefaultConfig())
	out, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	require.NoError(t, err)

	assert.Equal(t, StopFinalAnswer, out.StopReason)
	assert.Equal(t, 2, out.Steps)
	assert.Equal(t, -1.0, out.Confidence)
	assert.Zero(t, executions)
}

func TestEngineClientErrorPropagates(t *testing.T) {
	executions := 0
	reg := quoteRegistry(t, &executions)
	client := &scriptedClient{err: errors.New("endpoint unreachable")}

	engine := NewEngine(client, reg, nil, DefaultConfig())
	_, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	assert.Error(t, err)
}

func TestEngineRetriesAfterTransientToolFailure(t *testing.T) {
	executions := 0
	reg := tool.NewRegistry(tool.ModeAlert)
	require.NoError(t, reg.Register(tool.Definition{
		Name:   "quote",
		Params: map[string]tool.ParamSpec{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			executions++
			if executions == 1 {
				return nil, errors.New("upstream timeout")
			}
			return map[string]any{"ltp": 22000.5}, nil
		},
	}))
	call := provider.Reply{ToolCalls: []provider.ToolCall{{Name: "quote"}}}
	client := &scriptedClient{replies: []provider.Reply{
		call,
		call,
		{Content: "Final answer: wait. Confidence: 0.6"},
	}}

	engine := NewEngine(client, reg, nil, DefaultConfig())
	out, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	require.NoError(t, err)

	assert.Equal(t, 2, executions, "failed result must not be replayed from cache")
	require.Len(t, out.ToolTrace, 2)
	assert.False(t, out.ToolTrace[0].Result.Success)
	assert.True(t, out.ToolTrace[1].Result.Success)
}

func TestEngineFailedToolsStop(t *testing.T) {
	reg := tool.NewRegistry(tool.ModeAlert)
	require.NoError(t, reg.Register(tool.Definition{
		Name:   "flaky",
		Params: map[string]tool.ParamSpec{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream down")
		},
	}))
	call := provider.Reply{ToolCalls: []provider.ToolCall{{Name: "flaky"}}}
	client := &scriptedClient{replies: []provider.Reply{call, call, call}}

	cfg := DefaultConfig()
	cfg.Stop.ErrorThreshold = 2
	engine := NewEngine(client, reg, nil, cfg)
	out, err := engine.Run(context.Background(), "adjudicate", brief.Brief{Symbol: "NIFTY"})
	require.NoError(t, err)
	assert.Equal(t, StopToolErrors, out.StopReason)
}
