package app

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpel/internal/pipeline"
)

func result(id string) pipeline.Result {
	return pipeline.Result{TraceID: id, Symbol: "NIFTY"}
}

func TestRunHistoryRecentOrder(t *testing.T) {
	h := newRunHistory(10)
	for i := 0; i < 3; i++ {
		h.Add(result(fmt.Sprintf("run-%d", i)))
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-2", recent[0].TraceID)
	assert.Equal(t, "run-1", recent[1].TraceID)

	all := h.Recent(0)
	assert.Len(t, all, 3)
}

func TestRunHistoryEviction(t *testing.T) {
	h := newRunHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(result(fmt.Sprintf("run-%d", i)))
	}

	assert.Len(t, h.Recent(0), 3)

	_, ok := h.ByID("run-0")
	assert.False(t, ok, "evicted runs are no longer addressable")
	got, ok := h.ByID("run-4")
	require.True(t, ok)
	assert.Equal(t, "run-4", got.TraceID)
}
