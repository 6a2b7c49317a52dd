package notifier

import (
	"fmt"
	"strings"
	"time"

	"scalpel/internal/pipeline"
	"scalpel/internal/pkg/text"
)

const maxStructuredMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的 Telegram 推送。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本，自动裁剪长度。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	header := strings.TrimSpace(strings.TrimSpace(m.Icon + " " + m.Title))
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	return text.Truncate(strings.TrimSpace(b.String()), maxStructuredMessageLen)
}

// RecommendationMessage 把一次流水线结果整理成推送格式。
func RecommendationMessage(res pipeline.Result) StructuredMessage {
	rec := res.Recommendation
	msg := StructuredMessage{
		Icon:      decisionIcon(rec.Decision),
		Title:     fmt.Sprintf("%s %s", res.Symbol, rec.Decision),
		Timestamp: res.StartedAt,
	}

	decision := MessageSection{Title: "决策"}
	decision.Lines = append(decision.Lines,
		fmt.Sprintf("decision: %s", rec.Decision),
		fmt.Sprintf("confidence: %.2f", rec.Confidence),
		fmt.Sprintf("gates: %s", gatesLine(rec.Gates)),
	)
	if rec.Direction != "" {
		decision.Lines = append(decision.Lines,
			fmt.Sprintf("contract: %s %.0f", rec.Direction, rec.Strike),
			fmt.Sprintf("entry: %.2f  stop: %.2f", rec.Entry, rec.Stop),
		)
		if len(rec.Targets) > 0 {
			parts := make([]string, 0, len(rec.Targets))
			for _, t := range rec.Targets {
				parts = append(parts, fmt.Sprintf("%.2f", t))
			}
			decision.Lines = append(decision.Lines, "targets: "+strings.Join(parts, " / "))
		}
	}
	msg.Sections = append(msg.Sections, decision)

	if len(res.Candidates) > 0 {
		sec := MessageSection{Title: "候选合约"}
		for _, c := range res.Candidates {
			sec.Lines = append(sec.Lines, fmt.Sprintf("%s %.0f %s score=%.1f spread=%.2f%%",
				c.Side, c.Strike, c.Moneyness, c.Score, c.SpreadPct))
		}
		msg.Sections = append(msg.Sections, sec)
	}

	if len(res.Errors) > 0 {
		msg.Sections = append(msg.Sections, MessageSection{Title: "异常", Lines: res.Errors})
	}

	msg.Footer = text.Truncate(rec.Rationale, 600)
	return msg
}

func decisionIcon(d pipeline.Decision) string {
	switch d {
	case pipeline.DecisionEnter:
		return "🟢"
	case pipeline.DecisionWait:
		return "🟡"
	default:
		return "⚪"
	}
}

func gatesLine(gates []string) string {
	if len(gates) == 0 {
		return "none"
	}
	return strings.Join(gates, " → ")
}

func renderSections(secs []MessageSection) string {
	hasContent := false
	for _, sec := range secs {
		if len(sanitizeLines(sec.Lines)) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for idx, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		title := strings.TrimSpace(sec.Title)
		if title != "" {
			b.WriteString(sanitize(title))
			b.WriteString("\n")
		}
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(sanitize(line))
			b.WriteString("\n")
		}
		if idx != len(secs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n\n")
	return b.String()
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "```", "'''")
	return s
}
