package brief

import (
	"encoding/json"
	"time"

	"scalpel/internal/options"
	"scalpel/internal/timeframe"
)

// 中文说明：
// StructuredBrief 是推理层唯一允许接触的市场材料：三个时间框架的
// 结构化上下文、幸存候选合约、市况标记。不变式：任何原始价格
// 序列/单根 K线数据都不得进入该结构。

type SessionPhase string

const (
	PhasePreOpen SessionPhase = "preOpen"
	PhaseOpening SessionPhase = "opening"
	PhaseMidday  SessionPhase = "midday"
	PhaseClosing SessionPhase = "closing"
	PhaseClosed  SessionPhase = "closed"
)

type VolatilityRegime string

const (
	VolLow    VolatilityRegime = "low"
	VolNormal VolatilityRegime = "normal"
	VolHigh   VolatilityRegime = "high"
)

// ConditionFlags 市况标记。
type ConditionFlags struct {
	Session    SessionPhase     `json:"session"`
	Volatility VolatilityRegime `json:"volatility"`
	EventRisk  bool             `json:"event_risk"`
}

type Brief struct {
	Symbol     string              `json:"symbol"`
	Generated  time.Time           `json:"generated"`
	Primary    timeframe.Context   `json:"primary_15m"`
	Setup      timeframe.Context   `json:"setup_5m"`
	Trigger    timeframe.Context   `json:"trigger_1m"`
	Candidates []options.Candidate `json:"candidates"`
	Flags      ConditionFlags      `json:"flags"`
}

// Render 输出交给模型的紧凑 JSON。
func (b Brief) Render() string {
	raw, err := json.Marshal(b)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
