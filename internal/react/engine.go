package react

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scalpel/internal/brief"
	"scalpel/internal/gateway/provider"
	"scalpel/internal/logger"
	"scalpel/internal/pkg/circuit"
	"scalpel/internal/pkg/text"
	"scalpel/internal/tool"
)

// 工具结果回传给模型的字节上限，超出部分截断
const toolResultMaxBytes = 6000

// 中文说明：
// ReAct 推理循环：observe -> act -> decide。每一步把系统提示、目标
// 与裁剪后的历史发给模型，解析回复后分派工具或判定终止。
// 模型端点不可达属于非致命失败，调用方回退到确定性路径。

type Config struct {
	Stop   StopConfig
	Limits StateLimits
	// 连续无进展（纯文本且无工具调用）的容忍次数，超过按最终答案处理
	MaxStalls int
}

func DefaultConfig() Config {
	return Config{
		Stop:      DefaultStopConfig(),
		Limits:    DefaultStateLimits(),
		MaxStalls: 2,
	}
}

// Outcome 一次循环的产物。
type Outcome struct {
	FinalText  string
	Confidence float64 // 模型最后自报的置信度；未报告为 -1
	Steps      int
	StopReason StopReason
	ToolTrace  []ToolMemory
}

type Engine struct {
	client   provider.ChatClient
	registry *tool.Registry
	breaker  *circuit.Breaker
	cfg      Config
}

func NewEngine(client provider.ChatClient, registry *tool.Registry, breaker *circuit.Breaker, cfg Config) *Engine {
	if cfg.MaxStalls <= 0 {
		cfg.MaxStalls = 2
	}
	return &Engine{client: client, registry: registry, breaker: breaker, cfg: cfg}
}

// Run 执行循环直至停止条件触发。返回错误仅代表推理层整体失败
// （端点不可达/熔断打开），此时 Outcome 无效。
func (e *Engine) Run(ctx context.Context, goal string, b brief.Brief) (Outcome, error) {
	if e.breaker != nil && !e.breaker.Allow() {
		return Outcome{}, &provider.ReasoningError{Op: "run", Err: fmt.Errorf("model endpoint circuit is open")}
	}

	state := NewLoopState(e.registry.Mode(), e.cfg.Limits)
	system := systemPrompt(e.registry)
	userGoal := userPrompt(goal, b)
	knownTools := e.registry.Names()

	lastConfidence := -1.0
	stalls := 0

	for {
		messages := assemble(system, userGoal, state.Conversation)
		reply, err := e.client.Chat(ctx, messages, e.registry.Schemas())
		if err != nil {
			if e.breaker != nil {
				e.breaker.Failure()
			}
			return Outcome{}, err
		}
		if e.breaker != nil {
			e.breaker.Success()
		}

		parsed := Parse(reply, knownTools)
		if parsed.Confidence >= 0 {
			lastConfidence = parsed.Confidence
		}
		state = state.WithModelResponse(assistantMessage(reply))

		reason, grant := EvaluateStop(state, parsed, e.cfg.Stop)
		if grant {
			state = state.WithExtraGrant()
			logger.Debugf("[react] step %d: granted extra step (%d used)", state.Step, state.ExtraGrants)
		}
		if reason != StopNone {
			return e.finish(state, parsed, reason, lastConfidence), nil
		}

		switch parsed.Kind {
		case KindToolCall:
			stalls = 0
			state = e.dispatch(ctx, state, parsed.ToolCall)
		case KindText:
			stalls++
			if stalls >= e.cfg.MaxStalls {
				// 模型反复输出无法解析的文本：按最终答案收尾
				return e.finish(state, parsed, StopFinalAnswer, lastConfidence), nil
			}
		}
	}
}

// dispatch 执行（或复用缓存的）工具调用并把结果写回状态。
// 缓存命中时也追加 tool 消息，让模型看到这次"调用"的结果。
func (e *Engine) dispatch(ctx context.Context, state LoopState, tc *provider.ToolCall) LoopState {
	cache := state.Cache()
	res, hit := cache.Get(tc.Name, tc.Arguments)
	if !hit {
		res = e.registry.Execute(ctx, tc.Name, tc.Arguments)
		// 只缓存成功结果：瞬时失败的调用应该允许模型重试。
		if res.Success {
			cache.Put(tc.Name, tc.Arguments, res)
		}
	} else {
		logger.Debugf("[react] cache hit for %s", tc.Name)
	}
	return state.WithToolResult(tc, renderToolResult(res), res)
}

func (e *Engine) finish(state LoopState, parsed Parsed, reason StopReason, confidence float64) Outcome {
	final := strings.TrimSpace(parsed.Text)
	if parsed.Kind == KindToolCall || final == "" {
		final = state.LastAssistantText()
	}
	if final == "" {
		final = summarizeToolActivity(state.Memory)
	}
	return Outcome{
		FinalText:  final,
		Confidence: confidence,
		Steps:      state.Step,
		StopReason: reason,
		ToolTrace:  state.Memory,
	}
}

func assistantMessage(reply provider.Reply) provider.Message {
	return provider.Message{
		Role:      provider.RoleAssistant,
		Content:   reply.Content,
		ToolCalls: reply.ToolCalls,
	}
}

func assemble(system, goal string, history []provider.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history)+2)
	out = append(out, provider.Message{Role: provider.RoleSystem, Content: system})
	out = append(out, provider.Message{Role: provider.RoleUser, Content: goal})
	out = append(out, history...)
	return out
}

func renderToolResult(res tool.Result) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return text.Truncate(string(raw), toolResultMaxBytes)
}

// summarizeToolActivity 在没有干净的最终消息时合成一份工具活动摘要。
func summarizeToolActivity(memory []ToolMemory) string {
	if len(memory) == 0 {
		return "no conclusive answer produced"
	}
	var b strings.Builder
	b.WriteString("tool activity summary: ")
	for i, m := range memory {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(m.Tool)
		if m.Result.Success {
			b.WriteString(" ok")
		} else {
			b.WriteString(" failed")
		}
	}
	return b.String()
}
