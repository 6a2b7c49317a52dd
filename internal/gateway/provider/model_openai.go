package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scalpel/internal/logger"
)

// 中文说明：
// OpenAIChatClient：兼容 OpenAI / DeepSeek / Ollama 的聊天补全接口
// （/v1/chat/completions），支持 function tools 与有限重试（429/5xx）。

type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	Temperature  float64
	ExtraHeaders map[string]string
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (c *OpenAIChatClient) Chat(ctx context.Context, messages []Message, tools []map[string]any) (Reply, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := c.endpoint()

	body := map[string]any{
		"model":    c.Model,
		"messages": toWireMessages(messages),
		"stream":   false,
	}
	if c.Temperature > 0 {
		body["temperature"] = c.Temperature
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}
	b, err := json.Marshal(body)
	if err != nil {
		return Reply{}, &ReasoningError{Op: "encode", Err: err}
	}
	logger.LLMRequest("-", c.Model, map[string]string{"request": string(b)})

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if rerr != nil {
			return Reply{}, &ReasoningError{Op: "request", Err: rerr}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
		}
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, derr := httpc.Do(req)
		if derr != nil {
			lastErr = derr
			break
		}
		if resp.StatusCode/100 == 2 {
			reply, perr := decodeReply(resp)
			if perr != nil {
				return Reply{}, &ReasoningError{Op: "decode", Err: perr}
			}
			logger.LLMResponse("-", c.Model, reply.Content)
			return reply, nil
		}
		msg, retryAfter := decodeError(resp)
		if retryable(resp.StatusCode) && attempt < maxRetries {
			wait := retryAfter
			if wait == 0 {
				// 指数退避：0.8s, 1.6s, 3.2s ...
				wait = 800 * time.Millisecond << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
			}
			time.Sleep(wait)
			lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
			continue
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		break
	}
	return Reply{}, &ReasoningError{Op: "chat", Err: lastErr}
}

// endpoint 规范化 BaseURL，容忍用户把完整路径写进配置。
func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimSpace(c.BaseURL)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func toWireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var wtc wireToolCall
			wtc.ID = tc.ID
			wtc.Type = "function"
			wtc.Function.Name = tc.Name
			if tc.Arguments != nil {
				raw, _ := json.Marshal(tc.Arguments)
				wtc.Function.Arguments = string(raw)
			}
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out = append(out, wm)
	}
	return out
}

func decodeReply(resp *http.Response) (Reply, error) {
	defer resp.Body.Close()
	var r struct {
		Choices []struct {
			Message struct {
				Content   string         `json:"content"`
				ToolCalls []wireToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Reply{}, err
	}
	if len(r.Choices) == 0 {
		return Reply{}, fmt.Errorf("empty choices")
	}
	choice := r.Choices[0]
	reply := Reply{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	for _, wtc := range choice.Message.ToolCalls {
		tc := ToolCall{ID: wtc.ID, Name: wtc.Function.Name}
		if raw := strings.TrimSpace(wtc.Function.Arguments); raw != "" {
			args := map[string]any{}
			if err := json.Unmarshal([]byte(raw), &args); err == nil {
				tc.Arguments = args
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, tc)
	}
	return reply, nil
}

func decodeError(resp *http.Response) (string, time.Duration) {
	defer resp.Body.Close()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&eresp)
	msg := strings.TrimSpace(eresp.Error.Message)
	if msg == "" {
		msg = resp.Status
	}
	var wait time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			wait = time.Duration(secs) * time.Second
		}
	}
	return msg, wait
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
