package market

import (
	"hash/fnv"
	"sync"
)

// 中文说明：
// 进程内 K线缓存，按 symbol@interval 分片存储。仅用于单次运行内
// 复用数据，不是持久层。

const defaultShardCount = 16

type CandleStore struct {
	shards []candleShard
	max    int
}

type candleShard struct {
	mu   sync.RWMutex
	data map[string][]Candle
}

func NewCandleStore(maxPerKey int) *CandleStore {
	if maxPerKey <= 0 {
		maxPerKey = 300
	}
	s := &CandleStore{
		shards: make([]candleShard, defaultShardCount),
		max:    maxPerKey,
	}
	for i := range s.shards {
		s.shards[i] = candleShard{data: make(map[string][]Candle)}
	}
	return s
}

func storeKey(symbol, interval string) string { return symbol + "@" + interval }

func (s *CandleStore) shardFor(key string) *candleShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Put 覆盖写入并裁剪到 max 根（保留最近的）。
func (s *CandleStore) Put(symbol, interval string, candles []Candle) {
	key := storeKey(symbol, interval)
	if len(candles) > s.max {
		candles = candles[len(candles)-s.max:]
	}
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	shard := s.shardFor(key)
	shard.mu.Lock()
	shard.data[key] = cp
	shard.mu.Unlock()
}

func (s *CandleStore) Get(symbol, interval string) ([]Candle, bool) {
	key := storeKey(symbol, interval)
	shard := s.shardFor(key)
	shard.mu.RLock()
	cached, ok := shard.data[key]
	shard.mu.RUnlock()
	if !ok {
		return nil, false
	}
	cp := make([]Candle, len(cached))
	copy(cp, cached)
	return cp, true
}
