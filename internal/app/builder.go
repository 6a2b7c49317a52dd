package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scalpel/internal/brief"
	scfg "scalpel/internal/config"
	"scalpel/internal/gateway/notifier"
	"scalpel/internal/gateway/provider"
	"scalpel/internal/logger"
	"scalpel/internal/market"
	"scalpel/internal/options"
	"scalpel/internal/pipeline"
	"scalpel/internal/pkg/circuit"
	"scalpel/internal/profile"
	"scalpel/internal/react"
	"scalpel/internal/timeframe"
	"scalpel/internal/tool"
	resthttp "scalpel/internal/transport/http/rest"
)

type AppBuilder struct {
	cfg *scfg.Config

	sourceFn   func(scfg.MarketConfig) (market.Source, error)
	notifierFn func(scfg.NotifyConfig) notifier.TextNotifier
	clientFn   func(scfg.ModelConfig) provider.ChatClient
	serverFn   func(scfg.AppConfig, resthttp.RunService) (*resthttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *scfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourceFn:   buildMarketSource,
		notifierFn: buildNotifier,
		clientFn:   buildChatClient,
		serverFn:   buildRESTServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	source, err := b.sourceFn(cfg.Market)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 行情源就绪: %s", cfg.Market.ResolveActiveSource().Name)

	textNotifier := b.notifierFn(cfg.Notify)

	goal := ""
	var active *profile.Profile
	profiles, err := loadProfiles(cfg.Prompt)
	if err != nil {
		return nil, err
	}
	if profiles != nil {
		if p, ok := profiles.Profile(cfg.Prompt.ActiveProfile); ok {
			active = &p
			goal = p.Goal
			logger.Infof("✓ 启用档案 %s (v%d)", p.ID, p.Version)
		}
	}

	reasoner, err := buildReasoner(cfg, source, textNotifier, b.clientFn, active)
	if err != nil {
		return nil, err
	}

	runner := pipeline.NewRunner(source, reasoner, pipelineConfig(cfg, goal))

	if profiles != nil {
		activeID := strings.TrimSpace(cfg.Prompt.ActiveProfile)
		profiles.OnChange(func(snap profile.Snapshot) {
			p, ok := snap.Profiles[activeID]
			if !ok {
				logger.Warnf("档案 %s 在重载后消失，沿用旧目标", activeID)
				return
			}
			runner.SetGoal(p.Goal)
			logger.Infof("✓ 档案热更新生效: %s (v%d)", p.ID, p.Version)
		})
	}

	service := NewService(runner, source, textNotifier, ServiceConfig{
		Symbols:         cfg.Pipeline.Symbols,
		Interval:        time.Duration(cfg.Schedule.IntervalSeconds) * time.Second,
		RunImmediately:  cfg.Schedule.RunImmediately,
		ChartEnabled:    cfg.Chart.Enabled,
		ChartOutDir:     cfg.Chart.OutDir,
		NotifyDecisions: cfg.Notify.Telegram.Enabled,
	})

	server, err := b.serverFn(cfg.App, service)
	if err != nil {
		return nil, err
	}

	return &App{cfg: cfg, service: service, restHTTP: server, profiles: profiles}, nil
}

func buildMarketSource(cfg scfg.MarketConfig) (market.Source, error) {
	active := cfg.ResolveActiveSource()
	var inner market.Source
	switch strings.ToLower(strings.TrimSpace(active.Name)) {
	case "binance":
		inner = market.NewBinanceSource(market.BinanceConfig{RESTBaseURL: active.RESTBaseURL})
	case "broker", "upstox":
		src, err := market.NewBrokerSource(market.BrokerConfig{
			BaseURL:     active.RESTBaseURL,
			AccessToken: active.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		inner = src
	default:
		return nil, fmt.Errorf("unknown market source %q", active.Name)
	}
	store := market.NewCandleStore(cfg.CandleCacheMax)
	ttl := time.Duration(cfg.ChainTTLSeconds) * time.Second
	return market.NewCachedSource(inner, store, ttl), nil
}

func buildNotifier(cfg scfg.NotifyConfig) notifier.TextNotifier {
	if cfg.Telegram.Enabled {
		return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	return notifier.Nop{}
}

func buildChatClient(cfg scfg.ModelConfig) provider.ChatClient {
	return &provider.OpenAIChatClient{
		BaseURL:      cfg.APIURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
		ExtraHeaders: cfg.Headers,
	}
}

// buildReasoner 装配推理循环；model.enabled=false 时返回 nil，
// 流水线走确定性路径。启用档案时套用其工具白名单与步数上限。
func buildReasoner(cfg *scfg.Config, source market.Source, n notifier.TextNotifier, clientFn func(scfg.ModelConfig) provider.ChatClient, active *profile.Profile) (pipeline.Reasoner, error) {
	if !cfg.Model.Enabled {
		logger.Infof("推理模型未启用，流水线仅走确定性路径")
		return nil, nil
	}
	builtins := tool.BuiltinConfig{
		Source:      source,
		Notifier:    n,
		MaxLookback: cfg.Market.CandleCacheMax,
	}
	maxSteps := cfg.Loop.MaxSteps
	if active != nil {
		builtins.Allowed = active.ToolAllowed
		if active.MaxSteps > 0 {
			maxSteps = active.MaxSteps
		}
	}
	registry := tool.NewRegistry(tool.Mode(cfg.Loop.Mode))
	if err := tool.RegisterBuiltins(registry, builtins); err != nil {
		return nil, err
	}
	breaker := circuit.NewBreaker("model",
		cfg.Loop.BreakerOpens,
		time.Duration(cfg.Loop.BreakerCooldown)*time.Second)
	engine := react.NewEngine(clientFn(cfg.Model), registry, breaker, react.Config{
		Stop: react.StopConfig{
			MaxSteps:       maxSteps,
			ExtraSteps:     cfg.Loop.ExtraSteps,
			MinConfidence:  cfg.Loop.MinConfidence,
			ErrorThreshold: cfg.Loop.ErrorThreshold,
		},
		Limits: react.StateLimits{
			HistoryMax: cfg.Loop.HistoryMax,
			MemoryMax:  cfg.Loop.MemoryMax,
		},
		MaxStalls: cfg.Loop.MaxStalls,
	})
	return engine, nil
}

// loadProfiles 档案文件缺失不阻塞启动，只提示。
func loadProfiles(cfg scfg.PromptConfig) (*profile.Registry, error) {
	path := strings.TrimSpace(cfg.ProfilesPath)
	if path == "" {
		return nil, nil
	}
	reg, err := profile.NewRegistry(path)
	if err != nil {
		logger.Warnf("档案加载失败，继续使用内置目标: %v", err)
		return nil, nil
	}
	return reg, nil
}

func pipelineConfig(cfg *scfg.Config, goal string) pipeline.Config {
	loc, _ := time.LoadLocation(cfg.Session.Timezone)
	openH, openM, _ := scfg.ParseClock(cfg.Session.Open)
	closeH, closeM, _ := scfg.ParseClock(cfg.Session.Close)
	return pipeline.Config{
		Thresholds: timeframe.Thresholds{
			ADXStrong:   cfg.Pipeline.Thresholds.ADXStrong,
			ADXModerate: cfg.Pipeline.Thresholds.ADXModerate,
			ADXMin:      cfg.Pipeline.Thresholds.ADXMin,
			RSIOverheat: cfg.Pipeline.Thresholds.RSIOverheat,
			RSIOversold: cfg.Pipeline.Thresholds.RSIOversold,
		},
		Filter: options.FilterConfig{
			MinScore:     cfg.Pipeline.Filter.MinScore,
			MaxSpreadPct: cfg.Pipeline.Filter.MaxSpreadPct,
			MaxSurvivors: cfg.Pipeline.Filter.MaxSurvivors,
			StrikeWindow: cfg.Pipeline.Filter.StrikeWindow,
		},
		StopPct:     cfg.Pipeline.StopPct,
		TargetPct:   cfg.Pipeline.TargetPct,
		Lookback15m: cfg.Pipeline.Lookback15m,
		Lookback5m:  cfg.Pipeline.Lookback5m,
		Lookback1m:  cfg.Pipeline.Lookback1m,
		Session: brief.SessionConfig{
			Location:  loc,
			OpenHour:  openH,
			OpenMin:   openM,
			CloseHour: closeH,
			CloseMin:  closeM,
		},
		EventRisk: cfg.Pipeline.EventRisk,
		Goal:      goal,
	}
}

func buildRESTServer(cfg scfg.AppConfig, service resthttp.RunService) (*resthttp.Server, error) {
	return resthttp.NewServer(resthttp.ServerConfig{
		Addr:    cfg.HTTPAddr,
		Service: service,
	})
}
