package options

// 中文说明：
// 候选合约的确定性打分。纯加法、无副作用，相同输入必须得到
// 逐位相同的结果；模型完全不参与这里。

// Score 返回候选的数值评分（>=0）。
func Score(c Candidate) float64 {
	score := deltaComponent(abs(c.Greeks.Delta))
	score += gammaComponent(c.Greeks.Gamma)
	score += spreadComponent(c.SpreadPct)
	score += ivComponent(c.IVChange)
	score += oiComponent(c.OIChangePct)
	if abs(c.Greeks.Theta) > thetaRiskThreshold {
		score -= 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}

// delta 带宽：越靠近 0.3~0.5 的"甜区"得分越高。
func deltaComponent(delta float64) float64 {
	switch {
	case delta >= 0.3 && delta <= 0.5:
		return 3
	case delta >= 0.2 && delta <= 0.6:
		return 2
	case delta >= 0.1 && delta <= 0.7:
		return 1
	default:
		return 0
	}
}

func gammaComponent(gamma float64) float64 {
	switch {
	case gamma > 0.01:
		return 2
	case gamma > 0.005:
		return 1
	default:
		return 0
	}
}

func spreadComponent(spreadPct float64) float64 {
	switch {
	case spreadPct > 2.0:
		return -2
	case spreadPct > 1.0:
		return -1
	case spreadPct < 0.5:
		return 0.5
	default:
		return 0
	}
}

func ivComponent(ivChange float64) float64 {
	switch {
	case ivChange > 0.05:
		return 1.5
	case ivChange > 0.02:
		return 1.0
	case ivChange < -0.05:
		return -1.0
	default:
		return 0
	}
}

func oiComponent(oiChangePct float64) float64 {
	switch {
	case oiChangePct > 0.10:
		return 1.5
	case oiChangePct > 0.05:
		return 1.0
	default:
		return 0
	}
}
