package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

// BinanceSource 基于 go-binance SDK 的 K线/现价数据源。
// 加密货币标的没有集中式期权链，FetchOptionChain 固定返回数据源错误。
type BinanceSource struct {
	client *futures.Client
}

type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	client := futures.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]Candle, error) {
	symbol = cleanBinanceSymbol(symbol)
	if symbol == "" {
		return nil, NewSourceError("FetchCandles", symbol, fmt.Errorf("symbol is required"))
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, NewSourceError("FetchCandles", symbol, fmt.Errorf("interval is required"))
	}
	svc := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(maxKlineLimit)
	if !from.IsZero() {
		svc = svc.StartTime(from.UnixMilli())
	}
	if !to.IsZero() {
		svc = svc.EndTime(to.UnixMilli())
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, NewSourceError("FetchCandles", symbol, err)
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *BinanceSource) FetchOptionChain(ctx context.Context, symbol string) (*OptionChain, error) {
	return nil, NewSourceError("FetchOptionChain", symbol, fmt.Errorf("option chain not supported by binance source"))
}

func (s *BinanceSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = cleanBinanceSymbol(symbol)
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, NewSourceError("LatestPrice", symbol, err)
	}
	if len(prices) == 0 {
		return 0, NewSourceError("LatestPrice", symbol, fmt.Errorf("empty price response"))
	}
	return parseFloat(prices[0].Price), nil
}

// Binance 要求无分隔符的符号（ETH/USDT -> ETHUSDT）。
func cleanBinanceSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "/", "")
	return strings.ReplaceAll(symbol, "-", "")
}

func parseFloat(raw string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return f
}
