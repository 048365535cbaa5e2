package core

import (
	"github.com/signalsfoundry/skywatch/model"
)

// Cloud cover band boundaries, percent of sky covered.
const (
	cloudClear     = 25.0
	cloudScattered = 50.0
	cloudBroken    = 75.0
)

// Elevation band boundaries for pass quality, degrees.
const (
	elevationHigh = 45.0
	elevationMid  = 25.0
)

// OverallRating grades the current sky purely on cloud cover. A nil
// reading means the weather source was unreachable.
func OverallRating(cloudCoverPct *float64) model.Rating {
	if cloudCoverPct == nil {
		return model.RatingUnknown
	}
	switch c := *cloudCoverPct; {
	case c < cloudClear:
		return model.RatingExcellent
	case c < cloudScattered:
		return model.RatingGood
	case c < cloudBroken:
		return model.RatingFair
	default:
		return model.RatingPoor
	}
}

// PassRating grades a pass by combining its peak elevation with cloud
// cover. Without a cloud reading it degrades to a coarse
// elevation-only grade.
func PassRating(p model.Pass, cloudCoverPct *float64) model.Rating {
	if cloudCoverPct == nil {
		switch {
		case p.MaxElDeg >= elevationHigh:
			return model.RatingHigh
		case p.MaxElDeg >= elevationMid:
			return model.RatingMedium
		default:
			return model.RatingLow
		}
	}

	score := cloudBand(*cloudCoverPct) + elevationBand(p.MaxElDeg) + 0.5
	switch {
	case score <= 1.5:
		return model.RatingExcellent
	case score <= 3:
		return model.RatingGood
	case score <= 4:
		return model.RatingFair
	default:
		return model.RatingPoor
	}
}

func cloudBand(pct float64) float64 {
	switch {
	case pct < cloudClear:
		return 0
	case pct < cloudScattered:
		return 1
	case pct < cloudBroken:
		return 2
	default:
		return 3
	}
}

func elevationBand(deg float64) float64 {
	switch {
	case deg >= elevationHigh:
		return 0
	case deg >= elevationMid:
		return 1
	default:
		return 2
	}
}
