package config

import "strings"

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9991"
	defaultAppLogPath      = "/data/logs/scalpel-live.log"
	defaultAppLLMLogPath   = "/data/logs/scalpel-llm.log"
	defaultCandleCacheMax  = 300
	defaultChainTTLSeconds = 30
	defaultMarketName      = "broker"
	defaultMarketREST      = "https://api.upstox.com/v2"
	defaultModelTimeout    = 60
	defaultModelRetries    = 2
	defaultLoopMode        = "alert"
	defaultLoopMaxSteps    = 8
	defaultLoopExtraSteps  = 2
	defaultLoopMinConf     = 0.3
	defaultLoopErrThresh   = 5
	defaultLoopMaxStalls   = 2
	defaultLoopHistoryMax  = 24
	defaultLoopMemoryMax   = 16
	defaultBreakerOpens    = 3
	defaultBreakerCooldown = 120
	defaultStopPct         = 0.25
	defaultTargetPct       = 0.35
	defaultLookback15m     = 120
	defaultLookback5m      = 120
	defaultLookback1m      = 60
	defaultSessionTimezone = "Asia/Kolkata"
	defaultSessionOpen     = "09:15"
	defaultSessionClose    = "15:30"
	defaultProfilesPath    = "configs/profiles.yaml"
	defaultChartOutDir     = "/data/charts"
	defaultScheduleSeconds = 60
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Model.applyDefaults(keys)
	c.Loop.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Prompt.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "market.candle_cache_max",
			need:  func() bool { return m.CandleCacheMax <= 0 },
			apply: func() { m.CandleCacheMax = defaultCandleCacheMax },
		},
		fieldDefault{
			key:   "market.chain_ttl_seconds",
			need:  func() bool { return m.ChainTTLSeconds <= 0 },
			apply: func() { m.ChainTTLSeconds = defaultChainTTLSeconds },
		},
	)
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultMarketREST,
		}}
	}
	if strings.TrimSpace(m.ActiveSource) == "" {
		m.ActiveSource = firstEnabledSource(m.Sources)
	}
}

func (m *ModelConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "model.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultModelTimeout },
		},
		fieldDefault{
			key:   "model.max_retries",
			need:  func() bool { return m.MaxRetries <= 0 },
			apply: func() { m.MaxRetries = defaultModelRetries },
		},
	)
}

func (l *LoopConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("loop.mode", &l.Mode, defaultLoopMode),
		fieldDefault{
			key:   "loop.max_steps",
			need:  func() bool { return l.MaxSteps <= 0 },
			apply: func() { l.MaxSteps = defaultLoopMaxSteps },
		},
		fieldDefault{
			key:   "loop.extra_steps",
			need:  func() bool { return l.ExtraSteps <= 0 },
			apply: func() { l.ExtraSteps = defaultLoopExtraSteps },
		},
		fieldDefault{
			key:   "loop.min_confidence",
			need:  func() bool { return l.MinConfidence <= 0 },
			apply: func() { l.MinConfidence = defaultLoopMinConf },
		},
		fieldDefault{
			key:   "loop.error_threshold",
			need:  func() bool { return l.ErrorThreshold <= 0 },
			apply: func() { l.ErrorThreshold = defaultLoopErrThresh },
		},
		fieldDefault{
			key:   "loop.max_stalls",
			need:  func() bool { return l.MaxStalls <= 0 },
			apply: func() { l.MaxStalls = defaultLoopMaxStalls },
		},
		fieldDefault{
			key:   "loop.history_max",
			need:  func() bool { return l.HistoryMax <= 0 },
			apply: func() { l.HistoryMax = defaultLoopHistoryMax },
		},
		fieldDefault{
			key:   "loop.memory_max",
			need:  func() bool { return l.MemoryMax <= 0 },
			apply: func() { l.MemoryMax = defaultLoopMemoryMax },
		},
		fieldDefault{
			key:   "loop.breaker_failure_threshold",
			need:  func() bool { return l.BreakerOpens <= 0 },
			apply: func() { l.BreakerOpens = defaultBreakerOpens },
		},
		fieldDefault{
			key:   "loop.breaker_cooldown_seconds",
			need:  func() bool { return l.BreakerCooldown <= 0 },
			apply: func() { l.BreakerCooldown = defaultBreakerCooldown },
		},
	)
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "pipeline.stop_pct",
			need:  func() bool { return p.StopPct <= 0 },
			apply: func() { p.StopPct = defaultStopPct },
		},
		fieldDefault{
			key:   "pipeline.target_pct",
			need:  func() bool { return p.TargetPct <= 0 },
			apply: func() { p.TargetPct = defaultTargetPct },
		},
		fieldDefault{
			key:   "pipeline.lookback_15m",
			need:  func() bool { return p.Lookback15m <= 0 },
			apply: func() { p.Lookback15m = defaultLookback15m },
		},
		fieldDefault{
			key:   "pipeline.lookback_5m",
			need:  func() bool { return p.Lookback5m <= 0 },
			apply: func() { p.Lookback5m = defaultLookback5m },
		},
		fieldDefault{
			key:   "pipeline.lookback_1m",
			need:  func() bool { return p.Lookback1m <= 0 },
			apply: func() { p.Lookback1m = defaultLookback1m },
		},
	)
	if p.Thresholds.ADXStrong <= 0 {
		p.Thresholds.ADXStrong = 25
	}
	if p.Thresholds.ADXModerate <= 0 {
		p.Thresholds.ADXModerate = 20
	}
	if p.Thresholds.ADXMin <= 0 {
		p.Thresholds.ADXMin = 20
	}
	if p.Thresholds.RSIOverheat <= 0 {
		p.Thresholds.RSIOverheat = 75
	}
	if p.Thresholds.RSIOversold <= 0 {
		p.Thresholds.RSIOversold = 25
	}
	if p.Filter.MinScore <= 0 {
		p.Filter.MinScore = 5
	}
	if p.Filter.MaxSpreadPct <= 0 {
		p.Filter.MaxSpreadPct = 3.0
	}
	if p.Filter.MaxSurvivors <= 0 {
		p.Filter.MaxSurvivors = 2
	}
	if p.Filter.StrikeWindow <= 0 {
		p.Filter.StrikeWindow = 3
	}
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("session.timezone", &s.Timezone, defaultSessionTimezone),
		stringFieldDefault("session.open", &s.Open, defaultSessionOpen),
		stringFieldDefault("session.close", &s.Close, defaultSessionClose),
	)
}

func (p *PromptConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("prompt.profiles_path", &p.ProfilesPath, defaultProfilesPath),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("chart.out_dir", &c.OutDir, defaultChartOutDir),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "schedule.interval_seconds",
			need:  func() bool { return s.IntervalSeconds <= 0 },
			apply: func() { s.IntervalSeconds = defaultScheduleSeconds },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledSource(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}
