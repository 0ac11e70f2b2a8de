// Package risk turns scanner factors into a bounded score and a level.
//
// Scores are the saturating sum of factor points, 0 to 100. Levels use a
// 70/40 split: 70 and above is high, 40 to 69 is medium, below 40 is low.
package risk

import "github.com/rcollins22/rugchekr/internal/scanner"

// Default thresholds. Boundaries are inclusive on the lower edge.
const (
	DefaultHighThreshold   = 70
	DefaultMediumThreshold = 40

	MaxScore = 100
)

// Color tags a level for display.
type Color string

const (
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
)

// Level is the categorical reading of a score.
type Level struct {
	Label string `json:"label"`
	Color Color  `json:"color"`
}

var (
	LevelHigh   = Level{Label: "HIGH RISK", Color: ColorRed}
	LevelMedium = Level{Label: "MEDIUM RISK", Color: ColorYellow}
	LevelLow    = Level{Label: "LOW RISK", Color: ColorGreen}
)

// Scorer applies one threshold set.
type Scorer struct {
	highThreshold   int
	mediumThreshold int
}

// NewScorer returns a scorer with the default 70/40 thresholds.
func NewScorer() *Scorer {
	return &Scorer{
		highThreshold:   DefaultHighThreshold,
		mediumThreshold: DefaultMediumThreshold,
	}
}

// WithHighThreshold overrides the high threshold. Zero keeps the current
// one.
func (s *Scorer) WithHighThreshold(t int) *Scorer {
	if t > 0 {
		s.highThreshold = t
	}
	return s
}

// WithMediumThreshold overrides the medium threshold. Zero keeps the
// current one.
func (s *Scorer) WithMediumThreshold(t int) *Scorer {
	if t > 0 {
		s.mediumThreshold = t
	}
	return s
}

// Score sums factor points, clamped to [0, MaxScore]. Order does not matter.
func (s *Scorer) Score(factors []scanner.RiskFactor) int {
	total := 0
	for _, f := range factors {
		if f.Points <= 0 {
			continue
		}
		total += f.Points
		if total >= MaxScore {
			return MaxScore
		}
	}
	return total
}

// Level maps a score to its level.
func (s *Scorer) Level(score int) Level {
	switch {
	case score >= s.highThreshold:
		return LevelHigh
	case score >= s.mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

var defaultScorer = NewScorer()

// Score scores factors with the default thresholds.
func Score(factors []scanner.RiskFactor) int {
	return defaultScorer.Score(factors)
}

// LevelFor returns the level for score with the default thresholds.
func LevelFor(score int) Level {
	return defaultScorer.Level(score)
}
