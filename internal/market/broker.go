package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// 中文说明：
// BrokerSource 对接券商风格的 REST 行情接口（指数期权场景）。
// 路径与返回结构对齐常见的 /candles、/option-chain、/ltp 接口。

type BrokerSource struct {
	baseURL string
	token   string
	client  *http.Client
}

type BrokerConfig struct {
	BaseURL     string
	AccessToken string
	HTTPTimeout time.Duration
}

func NewBrokerSource(cfg BrokerConfig) (*BrokerSource, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("broker base url is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrokerSource{
		baseURL: base,
		token:   strings.TrimSpace(cfg.AccessToken),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type brokerCandleResp struct {
	Status string `json:"status"`
	Data   struct {
		Candles [][]any `json:"candles"`
	} `json:"data"`
}

func (s *BrokerSource) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	if !from.IsZero() {
		q.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		q.Set("to", to.Format("2006-01-02"))
	}
	var resp brokerCandleResp
	if err := s.getJSON(ctx, "/candles?"+q.Encode(), &resp); err != nil {
		return nil, NewSourceError("FetchCandles", symbol, err)
	}
	out := make([]Candle, 0, len(resp.Data.Candles))
	for _, row := range resp.Data.Candles {
		// 行格式: [timestamp, open, high, low, close, volume]
		if len(row) < 6 {
			continue
		}
		ts := asMillis(row[0])
		out = append(out, Candle{
			OpenTime:  ts,
			CloseTime: ts,
			Open:      asFloat(row[1]),
			High:      asFloat(row[2]),
			Low:       asFloat(row[3]),
			Close:     asFloat(row[4]),
			Volume:    asFloat(row[5]),
		})
	}
	// 部分券商按时间倒序返回
	if len(out) > 1 && out[0].OpenTime > out[len(out)-1].OpenTime {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

type brokerChainResp struct {
	Status string `json:"status"`
	Data   []struct {
		Expiry              string         `json:"expiry"`
		StrikePrice         float64        `json:"strike_price"`
		UnderlyingSpotPrice float64        `json:"underlying_spot_price"`
		CallOptions         brokerContract `json:"call_options"`
		PutOptions          brokerContract `json:"put_options"`
	} `json:"data"`
}

type brokerContract struct {
	InstrumentKey string `json:"instrument_key"`
	MarketData    struct {
		Ltp      float64 `json:"ltp"`
		Volume   float64 `json:"volume"`
		Oi       float64 `json:"oi"`
		PrevOi   float64 `json:"prev_oi"`
		BidPrice float64 `json:"bid_price"`
		AskPrice float64 `json:"ask_price"`
	} `json:"market_data"`
	OptionGreeks struct {
		Delta  float64 `json:"delta"`
		Gamma  float64 `json:"gamma"`
		Theta  float64 `json:"theta"`
		Vega   float64 `json:"vega"`
		Iv     float64 `json:"iv"`
		PrevIv float64 `json:"prev_iv"`
	} `json:"option_greeks"`
}

func (s *BrokerSource) FetchOptionChain(ctx context.Context, symbol string) (*OptionChain, error) {
	var resp brokerChainResp
	if err := s.getJSON(ctx, "/option-chain?symbol="+url.QueryEscape(symbol), &resp); err != nil {
		return nil, NewSourceError("FetchOptionChain", symbol, err)
	}
	chain := &OptionChain{Symbol: symbol, FetchedAt: time.Now()}
	for _, row := range resp.Data {
		if chain.Expiry == "" {
			chain.Expiry = row.Expiry
		}
		if chain.Spot == 0 {
			chain.Spot = row.UnderlyingSpotPrice
		}
		chain.Strikes = append(chain.Strikes, StrikeRow{
			Strike: row.StrikePrice,
			Call:   toQuote(row.CallOptions),
			Put:    toQuote(row.PutOptions),
		})
	}
	if len(chain.Strikes) == 0 {
		return nil, NewSourceError("FetchOptionChain", symbol, fmt.Errorf("empty option chain"))
	}
	return chain, nil
}

func (s *BrokerSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		Status string  `json:"status"`
		Ltp    float64 `json:"ltp"`
	}
	if err := s.getJSON(ctx, "/ltp?symbol="+url.QueryEscape(symbol), &resp); err != nil {
		return 0, NewSourceError("LatestPrice", symbol, err)
	}
	return resp.Ltp, nil
}

func (s *BrokerSource) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func toQuote(c brokerContract) OptionQuote {
	return OptionQuote{
		InstrumentKey: c.InstrumentKey,
		Bid:           c.MarketData.BidPrice,
		Ask:           c.MarketData.AskPrice,
		Last:          c.MarketData.Ltp,
		Volume:        c.MarketData.Volume,
		OpenInterest:  c.MarketData.Oi,
		PrevOI:        c.MarketData.PrevOi,
		IV:            c.OptionGreeks.Iv,
		PrevIV:        c.OptionGreeks.PrevIv,
		Greeks: Greeks{
			Delta: c.OptionGreeks.Delta,
			Gamma: c.OptionGreeks.Gamma,
			Theta: c.OptionGreeks.Theta,
			Vega:  c.OptionGreeks.Vega,
		},
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		var f float64
		fmt.Sscanf(t, "%g", &f)
		return f
	default:
		return 0
	}
}

func asMillis(v any) int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		if n > 0 && n < 1e12 {
			n *= 1000
		}
		return n
	case string:
		ts, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0
		}
		return ts.UnixMilli()
	default:
		return 0
	}
}
