package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scalpel/internal/chart"
	"scalpel/internal/gateway/notifier"
	"scalpel/internal/logger"
	"scalpel/internal/market"
	"scalpel/internal/pipeline"
)

// 中文说明：
// Service 驱动周期性分析：按固定间隔对每个标的跑一遍流水线，
// 结果入历史环、推送通知、落图表快照。REST 触发与定时触发共用
// 同一把锁，流水线单线程推进。

type ServiceConfig struct {
	Symbols         []string
	Interval        time.Duration
	RunImmediately  bool
	ChartEnabled    bool
	ChartOutDir     string
	NotifyDecisions bool
}

type Service struct {
	runner   *pipeline.Runner
	source   market.Source
	notifier notifier.TextNotifier
	history  *runHistory
	cfg      ServiceConfig

	mu sync.Mutex // 串行化所有流水线运行
}

func NewService(runner *pipeline.Runner, source market.Source, n notifier.TextNotifier, cfg ServiceConfig) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if n == nil {
		n = notifier.Nop{}
	}
	return &Service{
		runner:   runner,
		source:   source,
		notifier: n,
		history:  newRunHistory(200),
		cfg:      cfg,
	}
}

// Run 周期性扫描所有标的，直到 ctx 取消。
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.RunImmediately {
		s.scanAll(ctx)
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.scanAll(ctx)
		}
	}
}

func (s *Service) scanAll(ctx context.Context) {
	for _, symbol := range s.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		res := s.runOne(ctx, symbol)
		logger.Infof("[scan] %s decision=%s confidence=%.2f gates=%d",
			symbol, res.Recommendation.Decision, res.Recommendation.Confidence, len(res.GatesPassed))
	}
}

func (s *Service) runOne(ctx context.Context, symbol string) pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.runner.Run(ctx, symbol)
	s.history.Add(res)

	if s.cfg.NotifyDecisions && res.Recommendation.Decision != pipeline.DecisionNoTrade {
		msg := notifier.RecommendationMessage(res)
		if err := s.notifier.SendText(msg.RenderMarkdown()); err != nil {
			logger.Warnf("[notify] %s push failed: %v", symbol, err)
		}
	}
	if s.cfg.ChartEnabled {
		s.writeChart(ctx, res)
	}
	return res
}

// writeChart 落一份 HTML 快照；失败只记日志。
func (s *Service) writeChart(ctx context.Context, res pipeline.Result) {
	intervals := []string{"15m", "5m", "1m"}
	candles := make(map[string][]market.Candle, len(intervals))
	notes := make(map[string]string, len(res.Contexts))
	to := time.Now()
	for _, interval := range intervals {
		dur := 15 * time.Minute
		switch interval {
		case "5m":
			dur = 5 * time.Minute
		case "1m":
			dur = time.Minute
		}
		cs, err := s.source.FetchCandles(ctx, res.Symbol, interval, to.Add(-120*dur), to)
		if err != nil {
			continue
		}
		candles[interval] = cs
	}
	for _, c := range res.Contexts {
		notes[c.Timeframe] = fmt.Sprintf("bias=%s strength=%s allowed=%t", c.Bias, c.Strength, c.Allowed)
	}
	path, err := chart.WriteSnapshot(chart.SnapshotInput{
		Symbol:    res.Symbol,
		TraceID:   res.TraceID,
		Intervals: intervals,
		Candles:   candles,
		Notes:     notes,
	}, s.cfg.ChartOutDir)
	if err != nil {
		logger.Warnf("[chart] %s snapshot failed: %v", res.Symbol, err)
		return
	}
	logger.Debugf("[chart] %s snapshot written: %s", res.Symbol, path)
}

// TriggerRun 立即对指定标的运行一次（REST 入口）。
func (s *Service) TriggerRun(ctx context.Context, symbol string) (pipeline.Result, error) {
	if symbol == "" {
		return pipeline.Result{}, fmt.Errorf("symbol required")
	}
	return s.runOne(ctx, symbol), nil
}

func (s *Service) RecentRuns(limit int) []pipeline.Result {
	return s.history.Recent(limit)
}

func (s *Service) RunByID(traceID string) (pipeline.Result, bool) {
	return s.history.ByID(traceID)
}

func (s *Service) Symbols() []string {
	return append([]string(nil), s.cfg.Symbols...)
}
