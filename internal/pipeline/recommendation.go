package pipeline

import (
	"fmt"

	"scalpel/internal/options"
	"scalpel/internal/react"
	"scalpel/internal/timeframe"
)

// Decision 终态决策。
type Decision string

const (
	DecisionEnter   Decision = "enter"
	DecisionWait    Decision = "wait"
	DecisionNoTrade Decision = "noTrade"
)

// Recommendation 单次流水线运行的终端产物。
// 不变式：enter 必须引用一个通过过滤的候选合约，且置信度与
// 决策档位一致（enter>=0.7，wait 在 [0.5,0.7)，noTrade<0.5）。
type Recommendation struct {
	Decision   Decision     `json:"decision"`
	Direction  options.Side `json:"direction,omitempty"`
	Strike     float64      `json:"strike,omitempty"`
	Entry      float64      `json:"entry,omitempty"`
	Stop       float64      `json:"stop,omitempty"`
	Targets    []float64    `json:"targets,omitempty"`
	Confidence float64      `json:"confidence"`
	Rationale  string       `json:"rationale"`
	Gates      []string     `json:"gates_passed"`
}

// noTradeRecommendation 门失败的固定产物：置信度 0。
func noTradeRecommendation(reason string, gates []string) Recommendation {
	return Recommendation{
		Decision:   DecisionNoTrade,
		Confidence: 0.0,
		Rationale:  reason,
		Gates:      append([]string(nil), gates...),
	}
}

// deterministicRecommendation 不经模型的保底决策：方向取主时间框架
// 偏向，合约取最佳候选，止损/目标按权利金的固定比例偏移。
// 保底路径不下 enter 结论，只给出观察建议。
func deterministicRecommendation(bias timeframe.Bias, best options.Candidate, gates []string, stopPct, targetPct float64) Recommendation {
	entry := best.Last
	rec := Recommendation{
		Decision:   DecisionWait,
		Direction:  best.Side,
		Strike:     best.Strike,
		Entry:      entry,
		Stop:       entry * (1 - stopPct),
		Targets:    []float64{entry * (1 + targetPct), entry * (1 + 2*targetPct)},
		Confidence: 0.6,
		Rationale: fmt.Sprintf("deterministic fallback: %s bias, best candidate %s %.0f (score %.1f)",
			bias, best.Side, best.Strike, best.Score),
		Gates: append([]string(nil), gates...),
	}
	return rec
}

// reasonedRecommendation 把推理循环的产物映射到决策档位。
func reasonedRecommendation(outcome react.Outcome, best options.Candidate, gates []string, stopPct, targetPct float64) Recommendation {
	confidence := outcome.Confidence
	if confidence < 0 {
		// 模型未报告置信度：按观察档处理
		confidence = 0.5
	}
	rec := Recommendation{
		Direction:  best.Side,
		Strike:     best.Strike,
		Entry:      best.Last,
		Stop:       best.Last * (1 - stopPct),
		Targets:    []float64{best.Last * (1 + targetPct), best.Last * (1 + 2*targetPct)},
		Confidence: confidence,
		Rationale:  outcome.FinalText,
		Gates:      append([]string(nil), gates...),
	}
	switch {
	case confidence >= 0.7:
		rec.Decision = DecisionEnter
	case confidence >= 0.5:
		rec.Decision = DecisionWait
	default:
		rec.Decision = DecisionNoTrade
	}
	return rec
}
