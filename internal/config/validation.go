package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Model.validate(); err != nil {
		return err
	}
	if err := c.Loop.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("market.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(src.RESTBaseURL) == "" {
			return fmt.Errorf("market source %s missing rest_base_url", src.Name)
		}
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if activeName == "" || name == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled market.active_source=%s not found", m.ActiveSource)
	}
	if m.CandleCacheMax < 50 || m.CandleCacheMax > 1000 {
		return fmt.Errorf("market.candle_cache_max must be in [50,1000]")
	}
	return nil
}

func (m *ModelConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	if strings.TrimSpace(m.APIURL) == "" {
		return fmt.Errorf("model.api_url cannot be empty when model is enabled")
	}
	if strings.TrimSpace(m.Model) == "" {
		return fmt.Errorf("model.model cannot be empty when model is enabled")
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("model.temperature must be in [0,2]")
	}
	return nil
}

func (l *LoopConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(l.Mode))
	if mode != "alert" && mode != "live" {
		return fmt.Errorf("loop.mode only supports 'alert' or 'live', got %s", l.Mode)
	}
	l.Mode = mode
	if l.MinConfidence < 0 || l.MinConfidence >= 1 {
		return fmt.Errorf("loop.min_confidence must be in [0,1)")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if len(p.Symbols) == 0 {
		return fmt.Errorf("pipeline.symbols requires at least one symbol")
	}
	for i, s := range p.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return fmt.Errorf("pipeline.symbols contains an empty symbol")
		}
		p.Symbols[i] = s
	}
	if p.StopPct <= 0 || p.StopPct >= 1 {
		return fmt.Errorf("pipeline.stop_pct must be in (0,1)")
	}
	if p.TargetPct <= 0 {
		return fmt.Errorf("pipeline.target_pct must be > 0")
	}
	if p.Thresholds.ADXStrong < p.Thresholds.ADXModerate {
		return fmt.Errorf("pipeline.thresholds.adx_strong must be >= adx_moderate")
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("session.timezone invalid: %w", err)
	}
	for _, field := range []struct{ key, val string }{
		{"session.open", s.Open},
		{"session.close", s.Close},
	} {
		if _, _, err := ParseClock(field.val); err != nil {
			return fmt.Errorf("%s invalid: %w", field.key, err)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

// ParseClock 解析 "HH:MM" 形式的时刻。
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
