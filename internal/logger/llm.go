package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// 中文说明：
// LLM 流量审计通道：请求/响应全文写入独立文件，便于事后复盘模型行为。
// 与主日志分离，避免大段 prompt 淹没运行日志。

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(on bool) {
	llmMu.Lock()
	llmDumpPayload = on
	llmMu.Unlock()
}

// LLMRequest 记录一次模型请求（trace 标识 + 各段内容）。
func LLMRequest(traceID, model string, sections map[string]string) {
	logLLM("REQ", traceID, model, sections)
}

// LLMResponse 记录模型响应原文。
func LLMResponse(traceID, model, body string) {
	logLLM("RESP", traceID, model, map[string]string{"body": body})
}

func logLLM(kind, traceID, model string, sections map[string]string) {
	llmMu.Lock()
	l := llmLog
	dump := llmDumpPayload
	llmMu.Unlock()
	if l == nil || !dump {
		return
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[LLM][%s][%s][%s]", kind, model, traceID))
	for title, body := range sections {
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		b.WriteString("\n--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(body)
	}
	l.Println(b.String())
}
