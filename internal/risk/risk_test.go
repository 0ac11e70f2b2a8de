package risk

import (
	"math/rand"
	"testing"

	"github.com/rcollins22/rugchekr/internal/scanner"
	"github.com/stretchr/testify/assert"
)

func factors(points ...int) []scanner.RiskFactor {
	out := make([]scanner.RiskFactor, len(points))
	for i, p := range points {
		out[i] = scanner.RiskFactor{Text: "f", Severity: scanner.SeverityLow, Points: p}
	}
	return out
}

func TestScore_Empty(t *testing.T) {
	assert.Equal(t, 0, Score(nil))
	assert.Equal(t, 0, Score([]scanner.RiskFactor{}))
}

func TestScore_Saturates(t *testing.T) {
	// 25+25+20+20+20+15+20 = 145
	assert.Equal(t, 100, Score(factors(25, 25, 20, 20, 20, 15, 20)))
	assert.Equal(t, 100, Score(factors(100)))
}

func TestScore_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, 10, Score(factors(10, 0, -50)))
}

func TestScore_OrderIndependent(t *testing.T) {
	in := factors(25, 15, 5, 10, 20, 5)
	want := Score(in)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]scanner.RiskFactor(nil), in...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Score(shuffled))
	}
}

func TestLevelFor_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelLow},
		{39, LevelLow},
		{40, LevelMedium},
		{69, LevelMedium},
		{70, LevelHigh},
		{100, LevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.score), "score %d", tt.score)
	}
}

func TestLevelColors(t *testing.T) {
	assert.Equal(t, ColorRed, LevelHigh.Color)
	assert.Equal(t, ColorYellow, LevelMedium.Color)
	assert.Equal(t, ColorGreen, LevelLow.Color)
	assert.Equal(t, "MEDIUM RISK", LevelMedium.Label)
}

func TestScorer_CustomThresholds(t *testing.T) {
	s := NewScorer().WithHighThreshold(80).WithMediumThreshold(40)
	assert.Equal(t, LevelMedium, s.Level(79))
	assert.Equal(t, LevelHigh, s.Level(80))

	unset := NewScorer().WithHighThreshold(0).WithMediumThreshold(0)
	assert.Equal(t, LevelHigh, unset.Level(DefaultHighThreshold))
	assert.Equal(t, LevelLow, unset.Level(DefaultMediumThreshold-1))
}

func TestScore_EndToEndExample(t *testing.T) {
	got := scanner.Scan("selfdestruct onlyOwner")
	score := Score(got)
	assert.Equal(t, 40, score)
	assert.Equal(t, LevelMedium, LevelFor(score))
}
