package config

import "strings"

// Config 是 Scalpel 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Market   MarketConfig   `toml:"market"`
	Model    ModelConfig    `toml:"model"`
	Loop     LoopConfig     `toml:"loop"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Session  SessionConfig  `toml:"session"`
	Notify   NotifyConfig   `toml:"notify"`
	Prompt   PromptConfig   `toml:"prompt"`
	Chart    ChartConfig    `toml:"chart"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

type MarketConfig struct {
	ActiveSource    string         `toml:"active_source"`
	CandleCacheMax  int            `toml:"candle_cache_max"`
	ChainTTLSeconds int            `toml:"chain_ttl_seconds"`
	Sources         []MarketSource `toml:"sources"`
}

type MarketSource struct {
	Name        string `toml:"name"`
	Enabled     bool   `toml:"enabled"`
	RESTBaseURL string `toml:"rest_base_url"`
	AccessToken string `toml:"access_token"`
}

// ModelConfig 描述推理模型端点；enabled=false 时只走确定性路径。
type ModelConfig struct {
	Enabled        bool              `toml:"enabled"`
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Temperature    float64           `toml:"temperature"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	Headers        map[string]string `toml:"headers"`
}

// LoopConfig 控制推理循环的模式与停止条件。
type LoopConfig struct {
	Mode            string  `toml:"mode"` // "alert" | "live"
	MaxSteps        int     `toml:"max_steps"`
	ExtraSteps      int     `toml:"extra_steps"`
	MinConfidence   float64 `toml:"min_confidence"`
	ErrorThreshold  int     `toml:"error_threshold"`
	MaxStalls       int     `toml:"max_stalls"`
	HistoryMax      int     `toml:"history_max"`
	MemoryMax       int     `toml:"memory_max"`
	BreakerOpens    int     `toml:"breaker_failure_threshold"`
	BreakerCooldown int     `toml:"breaker_cooldown_seconds"`
}

type PipelineConfig struct {
	Symbols     []string        `toml:"symbols"`
	StopPct     float64         `toml:"stop_pct"`
	TargetPct   float64         `toml:"target_pct"`
	Lookback15m int             `toml:"lookback_15m"`
	Lookback5m  int             `toml:"lookback_5m"`
	Lookback1m  int             `toml:"lookback_1m"`
	EventRisk   bool            `toml:"event_risk"`
	Thresholds  ThresholdConfig `toml:"thresholds"`
	Filter      FilterConfig    `toml:"filter"`
}

type ThresholdConfig struct {
	ADXStrong   float64 `toml:"adx_strong"`
	ADXModerate float64 `toml:"adx_moderate"`
	ADXMin      float64 `toml:"adx_min"`
	RSIOverheat float64 `toml:"rsi_overheat"`
	RSIOversold float64 `toml:"rsi_oversold"`
}

type FilterConfig struct {
	MinScore     float64 `toml:"min_score"`
	MaxSpreadPct float64 `toml:"max_spread_pct"`
	MaxSurvivors int     `toml:"max_survivors"`
	StrikeWindow int     `toml:"strike_window"`
}

// SessionConfig 交易所时钟："HH:MM" 格式的开收盘时刻。
type SessionConfig struct {
	Timezone string `toml:"timezone"`
	Open     string `toml:"open"`
	Close    string `toml:"close"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type PromptConfig struct {
	ProfilesPath  string `toml:"profiles_path"`
	ActiveProfile string `toml:"active_profile"`
}

type ChartConfig struct {
	Enabled bool   `toml:"enabled"`
	OutDir  string `toml:"out_dir"`
}

type ScheduleConfig struct {
	IntervalSeconds int  `toml:"interval_seconds"`
	RunImmediately  bool `toml:"run_immediately"`
}

func (m MarketConfig) ResolveActiveSource() MarketSource {
	if len(m.Sources) == 0 {
		return MarketSource{
			Name:        "broker",
			Enabled:     true,
			RESTBaseURL: "https://api.upstox.com/v2",
		}
	}
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	var fallback MarketSource
	for _, src := range m.Sources {
		if fallback.Name == "" {
			fallback = src
		}
		if !src.Enabled {
			continue
		}
		if active == "" || strings.ToLower(src.Name) == active {
			return src
		}
	}
	return fallback
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
