package model

// SunlitStatus tells whether the body is illuminated by the sun.
// A body inside the Earth's full shadow cannot be spotted even under a
// dark sky.
type SunlitStatus string

const (
	SunlitUnknown  SunlitStatus = "unknown"
	Sunlit         SunlitStatus = "sunlit"
	SunlitPenumbra SunlitStatus = "penumbra"
	SunlitEclipsed SunlitStatus = "eclipsed"
)
