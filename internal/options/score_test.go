package options

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scalpel/internal/market"
)

func TestScoreDeltaBands(t *testing.T) {
	base := Candidate{SpreadPct: 0.7} // spread 中性区，不加不减

	t.Run("sweet spot", func(t *testing.T) {
		c := base
		c.Greeks.Delta = 0.4
		assert.Equal(t, 3.0, Score(c))
	})
	t.Run("outer band", func(t *testing.T) {
		c := base
		c.Greeks.Delta = 0.25
		assert.Equal(t, 2.0, Score(c))
	})
	t.Run("edge band", func(t *testing.T) {
		c := base
		c.Greeks.Delta = 0.65
		assert.Equal(t, 1.0, Score(c))
	})
	t.Run("negative delta uses magnitude", func(t *testing.T) {
		c := base
		c.Greeks.Delta = -0.4
		assert.Equal(t, 3.0, Score(c))
	})
	t.Run("deep itm out of band", func(t *testing.T) {
		c := base
		c.Greeks.Delta = 0.9
		assert.Equal(t, 0.0, Score(c))
	})
}

func TestScoreComponentsAdditive(t *testing.T) {
	c := Candidate{
		Greeks:      market.Greeks{Delta: 0.4, Gamma: 0.02, Theta: -3},
		SpreadPct:   0.3,
		IVChange:    0.06,
		OIChangePct: 0.12,
	}
	// delta 3 + gamma 2 + spread 0.5 + iv 1.5 + oi 1.5
	assert.InDelta(t, 8.5, Score(c), 1e-9)
}

func TestScoreThetaPenalty(t *testing.T) {
	c := Candidate{Greeks: market.Greeks{Delta: 0.4, Theta: -12}, SpreadPct: 0.7}
	assert.Equal(t, 2.0, Score(c))
}

func TestScoreWideSpreadPenalty(t *testing.T) {
	c := Candidate{Greeks: market.Greeks{Delta: 0.4}, SpreadPct: 2.5}
	assert.Equal(t, 1.0, Score(c))

	c.SpreadPct = 1.5
	assert.Equal(t, 2.0, Score(c))
}

func TestScoreNeverNegative(t *testing.T) {
	c := Candidate{
		Greeks:    market.Greeks{Delta: 0.05, Theta: -20},
		SpreadPct: 5.0,
		IVChange:  -0.10,
	}
	assert.Equal(t, 0.0, Score(c))
}

func TestScoreDeterministic(t *testing.T) {
	c := Candidate{
		Greeks:      market.Greeks{Delta: 0.35, Gamma: 0.008, Theta: -4},
		SpreadPct:   0.4,
		IVChange:    0.03,
		OIChangePct: 0.07,
	}
	first := Score(c)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Score(c))
	}
}
