package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// 中文说明：
// CachedSource 对底层 Source 做短 TTL 缓存 + singleflight 去重。
// 决策流水线本身是串行的，但 HTTP 触发与定时触发可能并发到达，
// 去重保证同一标的不会对券商打出重复请求。

type CachedSource struct {
	inner    Source
	store    *CandleStore
	chainTTL time.Duration

	group singleflight.Group

	mu       sync.Mutex
	chains   map[string]*OptionChain
	fetched  map[string]time.Time
	candleAt map[string]time.Time
}

func NewCachedSource(inner Source, store *CandleStore, chainTTL time.Duration) *CachedSource {
	if chainTTL <= 0 {
		chainTTL = 30 * time.Second
	}
	return &CachedSource{
		inner:    inner,
		store:    store,
		chainTTL: chainTTL,
		chains:   make(map[string]*OptionChain),
		fetched:  make(map[string]time.Time),
		candleAt: make(map[string]time.Time),
	}
}

func (c *CachedSource) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]Candle, error) {
	if c.store != nil {
		c.mu.Lock()
		at, known := c.candleAt[storeKey(symbol, interval)]
		c.mu.Unlock()
		if known && time.Since(at) < candleTTL(interval) {
			if cached, ok := c.store.Get(symbol, interval); ok {
				return cached, nil
			}
		}
	}

	key := fmt.Sprintf("candles:%s:%s:%d:%d", symbol, interval, from.Unix(), to.Unix())
	v, err, _ := c.group.Do(key, func() (any, error) {
		candles, err := c.inner.FetchCandles(ctx, symbol, interval, from, to)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			c.store.Put(symbol, interval, candles)
			c.mu.Lock()
			c.candleAt[storeKey(symbol, interval)] = time.Now()
			c.mu.Unlock()
		}
		return candles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Candle), nil
}

func (c *CachedSource) FetchOptionChain(ctx context.Context, symbol string) (*OptionChain, error) {
	c.mu.Lock()
	if chain, ok := c.chains[symbol]; ok && time.Since(c.fetched[symbol]) < c.chainTTL {
		c.mu.Unlock()
		return chain, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("chain:"+symbol, func() (any, error) {
		chain, err := c.inner.FetchOptionChain(ctx, symbol)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.chains[symbol] = chain
		c.fetched[symbol] = time.Now()
		c.mu.Unlock()
		return chain, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*OptionChain), nil
}

func (c *CachedSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return c.inner.LatestPrice(ctx, symbol)
}

// candleTTL 缓存窗口的复用期限：同一根 bar 期间不重复拉取。
func candleTTL(interval string) time.Duration {
	switch interval {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	default:
		return time.Minute
	}
}
