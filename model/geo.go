package model

// GeoPoint is a geodetic position on the spherical Earth model.
// Latitude and longitude are in degrees, altitude in kilometres
// above the mean radius.
type GeoPoint struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltKm  float64 `json:"alt_km"`
}
