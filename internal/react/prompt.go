package react

import (
	"fmt"
	"strings"

	"scalpel/internal/brief"
	"scalpel/internal/tool"
)

// 中文说明：
// 提示词装配。系统提示 = 行为规则 + 工具目录；用户提示 = 目标 +
// 结构化 brief（唯一允许进入模型的市场材料）。

func systemPrompt(registry *tool.Registry) string {
	var b strings.Builder
	b.WriteString("You are an intraday options trading adjudicator.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Base every judgement only on the structured brief and tool results.\n")
	b.WriteString("- Use the native tool-calling channel; one tool call at a time.\n")
	b.WriteString("- When done, start your reply with \"Final answer:\" and include a confidence between 0.0 and 1.0.\n")
	b.WriteString("- If the evidence is weak, recommend no trade.\n")
	if registry.Mode() == tool.ModeAlert {
		b.WriteString("- Execution tools are disabled: you may analyse but never place orders.\n")
	}
	names := registry.Names()
	if len(names) > 0 {
		b.WriteString("Available tools: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func userPrompt(goal string, br brief.Brief) string {
	var b strings.Builder
	if strings.TrimSpace(goal) == "" {
		goal = fmt.Sprintf("Adjudicate the prepared trade setup for %s.", br.Symbol)
	}
	b.WriteString(goal)
	b.WriteString("\n\nStructured brief:\n")
	b.WriteString(br.Render())
	return b.String()
}
