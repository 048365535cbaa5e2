package model

// Rating is a categorical viewing-quality label. Overall sky ratings use
// the Excellent..Poor scale; pass ratings fall back to the High/Medium/Low
// chance scale when cloud data is unavailable.
type Rating string

const (
	RatingUnknown   Rating = "Unknown"
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
	RatingHigh      Rating = "High"
	RatingMedium    Rating = "Medium"
	RatingLow       Rating = "Low"
)

// ColorKey returns the rendering color key associated with the rating.
func (r Rating) ColorKey() string {
	switch r {
	case RatingExcellent, RatingHigh:
		return "green"
	case RatingGood, RatingMedium:
		return "yellow"
	case RatingFair:
		return "orange"
	case RatingPoor, RatingLow:
		return "red"
	default:
		return "gray"
	}
}
