package app

import (
	"sync"

	"scalpel/internal/pipeline"
)

// runHistory 近期运行结果的环形缓存，供 REST 查询。
type runHistory struct {
	mu   sync.RWMutex
	max  int
	runs []pipeline.Result
	byID map[string]int
}

func newRunHistory(max int) *runHistory {
	if max <= 0 {
		max = 100
	}
	return &runHistory{max: max, byID: make(map[string]int)}
}

func (h *runHistory) Add(res pipeline.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, res)
	if len(h.runs) > h.max {
		drop := len(h.runs) - h.max
		h.runs = append([]pipeline.Result(nil), h.runs[drop:]...)
	}
	h.byID = make(map[string]int, len(h.runs))
	for i, r := range h.runs {
		h.byID[r.TraceID] = i
	}
}

// Recent 按时间倒序返回最近 limit 条。
func (h *runHistory) Recent(limit int) []pipeline.Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.runs) {
		limit = len(h.runs)
	}
	out := make([]pipeline.Result, 0, limit)
	for i := len(h.runs) - 1; i >= len(h.runs)-limit; i-- {
		out = append(out, h.runs[i])
	}
	return out
}

func (h *runHistory) ByID(traceID string) (pipeline.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, ok := h.byID[traceID]
	if !ok {
		return pipeline.Result{}, false
	}
	return h.runs[idx], true
}
