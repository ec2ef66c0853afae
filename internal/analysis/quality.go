package analysis

import "math"

// MateScore is the pawn value a forced mate is reported as (10000 cp).
const MateScore = 100.0

type QualityLabel string

const (
	QualityEqual      QualityLabel = "equal"
	QualitySolid      QualityLabel = "solid"
	QualityGood       QualityLabel = "good"
	QualityExcellent  QualityLabel = "excellent"
	QualityInaccuracy QualityLabel = "inaccuracy"
	QualityMistake    QualityLabel = "mistake"
	QualityBlunder    QualityLabel = "blunder"
)

// Quality grades a score in pawns from the perspective of the side that
// just moved. Thresholds are symmetric around zero.
func Quality(score float64) QualityLabel {
	switch {
	case math.Abs(score) < 0.5:
		return QualityEqual
	case score > 2:
		return QualityExcellent
	case score > 1:
		return QualityGood
	case score > 0:
		return QualitySolid
	case score < -2:
		return QualityBlunder
	case score < -1:
		return QualityMistake
	default:
		return QualityInaccuracy
	}
}

// IsMate reports whether score is a mate score rather than material.
func IsMate(score float64) bool {
	return math.Abs(score) >= MateScore
}

// EvalBarPercent is the share of the evaluation bar given to black, in
// percent, for a white-relative score in pawns.
func EvalBarPercent(score float64) float64 {
	return math.Max(0, math.Min(100, 50-score*5))
}
