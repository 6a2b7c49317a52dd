package react

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scalpel/internal/tool"
)

func TestKeyNormalization(t *testing.T) {
	a := Key("Get_Candles", map[string]any{"Symbol": "nifty", "interval": "5m"})
	b := Key("get_candles", map[string]any{"symbol": "NIFTY", "Interval": "5M"})
	assert.Equal(t, a, b, "key case and arg-key order must not matter")
}

func TestKeyArgOrderIndependent(t *testing.T) {
	a := Key("get_ltp", map[string]any{"a": float64(1), "b": float64(2)})
	b := Key("get_ltp", map[string]any{"b": float64(2), "a": float64(1)})
	assert.Equal(t, a, b)
}

func TestKeyPreservesNonAlphanumericStrings(t *testing.T) {
	// 带空格/标点的字符串不做大小写折叠
	a := Key("send_alert", map[string]any{"message": "entry near vwap"})
	b := Key("send_alert", map[string]any{"message": "ENTRY NEAR VWAP"})
	assert.NotEqual(t, a, b)
}

func TestKeyDistinguishesValues(t *testing.T) {
	a := Key("get_candles", map[string]any{"symbol": "NIFTY"})
	b := Key("get_candles", map[string]any{"symbol": "BANKNIFTY"})
	assert.NotEqual(t, a, b)
}

func TestCacheGetPut(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("get_ltp", map[string]any{"symbol": "NIFTY"})
	assert.False(t, ok)

	res := tool.Result{Success: true, Data: 22000.5}
	c.Put("get_ltp", map[string]any{"symbol": "nifty"}, res)

	got, ok := c.Get("GET_LTP", map[string]any{"Symbol": "NIFTY"})
	assert.True(t, ok, "normalized keys must hit the same entry")
	assert.Equal(t, res, got)
	assert.Equal(t, 1, c.Len())
}
