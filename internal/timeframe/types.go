package timeframe

// 时间框架代码（与数据源 interval 编码一致）。
const (
	TF15m = "15m"
	TF5m  = "5m"
	TF1m  = "1m"
)

// Status 上下文构建结果状态。
type Status string

const (
	StatusComplete Status = "complete"
	StatusNoData   Status = "noData"
	StatusError    Status = "error"
)

// Bias 方向判断。
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// Strength 趋势强度标签；指标缺失时为 unknown。
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
	StrengthUnknown  Strength = "unknown"
)

// Setup 5分钟级别的形态分类。
type Setup string

const (
	SetupPullback Setup = "pullback"
	SetupBreakout Setup = "breakout"
	SetupNone     Setup = "none"
)

// Context 单个时间框架的结构化上下文。构建后不再修改，
// 每次流水线运行重新生成。只携带事实标签与少量命名指标值，
// 绝不包含原始 K线序列。
type Context struct {
	Timeframe string             `json:"timeframe"`
	Status    Status             `json:"status"`
	Bias      Bias               `json:"bias"`
	Strength  Strength           `json:"strength"`
	Setup     Setup              `json:"setup,omitempty"`
	Values    map[string]float64 `json:"values,omitempty"`
	Allowed   bool               `json:"allowed"`
	Reason    string             `json:"reason,omitempty"`
}

// Facts 交给变换函数的标量事实（由流水线从 K线提炼，不含序列）。
type Facts struct {
	Status     Status
	LastClose  float64
	PrevClose  float64
	RecentHigh float64
	RecentLow  float64
}

// Thresholds 强度阶梯与准入门槛。
type Thresholds struct {
	ADXStrong   float64
	ADXModerate float64
	ADXMin      float64
	RSIOverheat float64
	RSIOversold float64
}

// DefaultThresholds 缺省阶梯：>=25 strong，>=20 moderate。
func DefaultThresholds() Thresholds {
	return Thresholds{
		ADXStrong:   25,
		ADXModerate: 20,
		ADXMin:      20,
		RSIOverheat: 75,
		RSIOversold: 25,
	}
}
