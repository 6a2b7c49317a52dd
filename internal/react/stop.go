package react

// 中文说明：
// 停止条件求值：纯函数，只依赖当前状态与最新一次解析结果。
// 软步数上限允许模型显式申请少量延长，用完后硬停。

type StopReason string

const (
	StopNone          StopReason = ""
	StopFinalAnswer   StopReason = "finalAnswer"
	StopStepLimit     StopReason = "stepLimit"
	StopLowConfidence StopReason = "lowConfidence"
	StopToolErrors    StopReason = "toolErrors"
)

type StopConfig struct {
	MaxSteps       int     // 软上限
	ExtraSteps     int     // 模型显式申请时可追加的步数
	MinConfidence  float64 // 低于该值提前终止
	ErrorThreshold int     // 工具错误累计阈值
}

func DefaultStopConfig() StopConfig {
	return StopConfig{
		MaxSteps:       8,
		ExtraSteps:     2,
		MinConfidence:  0.3,
		ErrorThreshold: 5,
	}
}

func (c StopConfig) normalized() StopConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 8
	}
	if c.ExtraSteps < 0 {
		c.ExtraSteps = 0
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.3
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 5
	}
	return c
}

// EvaluateStop 返回 (原因, 是否需要延长授予)。第二个返回值为 true 时
// 调用方应记录一次 ExtraGrant 后继续循环。
func EvaluateStop(state LoopState, parsed Parsed, cfg StopConfig) (StopReason, bool) {
	cfg = cfg.normalized()

	if parsed.Kind == KindFinal {
		return StopFinalAnswer, false
	}
	if parsed.Confidence >= 0 && parsed.Confidence < cfg.MinConfidence {
		return StopLowConfidence, false
	}
	if state.ToolErrors >= cfg.ErrorThreshold {
		return StopToolErrors, false
	}
	if state.Step >= cfg.MaxSteps+cfg.ExtraSteps {
		return StopStepLimit, false
	}
	if state.Step >= cfg.MaxSteps {
		if parsed.WantsContinue && state.ExtraGrants < cfg.ExtraSteps {
			return StopNone, true
		}
		return StopStepLimit, false
	}
	return StopNone, false
}
