package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

func look(az, el float64) model.LookAngle {
	return model.LookAngle{Time: time.Unix(0, 0).UTC(), AzimuthDeg: az, ElevationDeg: el}
}

func TestPolarPlot_CardinalPoints(t *testing.T) {
	p := PolarPlot{CenterX: 200, CenterY: 200, Radius: 150}

	cases := []struct {
		name   string
		la     model.LookAngle
		wantX  float64
		wantY  float64
	}{
		{"zenith", look(123, 90), 200, 200},
		{"north on rim", look(0, 0), 200, 50},
		{"east on rim", look(90, 0), 350, 200},
		{"south on rim", look(180, 0), 200, 350},
		{"west on rim", look(270, 0), 50, 200},
		{"north halfway up", look(0, 45), 200, 125},
	}
	for _, tc := range cases {
		pt, ok := p.Project(tc.la)
		if !ok {
			t.Fatalf("%s: not plottable", tc.name)
		}
		if math.Abs(pt.X-tc.wantX) > 1e-9 || math.Abs(pt.Y-tc.wantY) > 1e-9 {
			t.Errorf("%s: (%.6f, %.6f), want (%.1f, %.1f)", tc.name, pt.X, pt.Y, tc.wantX, tc.wantY)
		}
		if pt.Mode != model.ProjectionPolar {
			t.Errorf("%s: mode = %v, want polar", tc.name, pt.Mode)
		}
	}
}

func TestPolarPlot_HeadingRotation(t *testing.T) {
	// Facing east puts east at the top of the chart.
	p := PolarPlot{CenterX: 200, CenterY: 200, Radius: 150, HeadingDeg: 90}

	pt, ok := p.Project(look(90, 0))
	if !ok {
		t.Fatal("east not plottable")
	}
	if math.Abs(pt.X-200) > 1e-9 || math.Abs(pt.Y-50) > 1e-9 {
		t.Errorf("east with heading 90 = (%.3f, %.3f), want (200, 50)", pt.X, pt.Y)
	}
}

func TestPolarPlot_BelowHorizonHidden(t *testing.T) {
	p := PolarPlot{CenterX: 200, CenterY: 200, Radius: 150}
	if _, ok := p.Project(look(45, -0.1)); ok {
		t.Error("below-horizon point should not be plottable")
	}
}

func TestPolarPlot_Deterministic(t *testing.T) {
	p := PolarPlot{CenterX: 320, CenterY: 240, Radius: 200, HeadingDeg: 17}
	la := look(211.7, 33.3)

	first, ok1 := p.Project(la)
	second, ok2 := p.Project(la)
	if !ok1 || !ok2 || first != second {
		t.Errorf("projection not reproducible: %+v vs %+v", first, second)
	}
}

func TestPanoramaPlot_Window(t *testing.T) {
	p := PanoramaPlot{Width: 800, Height: 600, AzMinDeg: 90, AzMaxDeg: 270}

	cases := []struct {
		name  string
		la    model.LookAngle
		wantX float64
		wantY float64
	}{
		{"left edge on horizon", look(90, 0), 0, 600},
		{"center halfway up", look(180, 45), 400, 300},
		{"right edge at top", look(270, 90), 800, 0},
	}
	for _, tc := range cases {
		pt, ok := p.Project(tc.la)
		if !ok {
			t.Fatalf("%s: not plottable", tc.name)
		}
		if math.Abs(pt.X-tc.wantX) > 1e-9 || math.Abs(pt.Y-tc.wantY) > 1e-9 {
			t.Errorf("%s: (%.6f, %.6f), want (%.1f, %.1f)", tc.name, pt.X, pt.Y, tc.wantX, tc.wantY)
		}
		if pt.Mode != model.ProjectionPanorama {
			t.Errorf("%s: mode = %v, want panorama", tc.name, pt.Mode)
		}
	}

	if _, ok := p.Project(look(0, 45)); ok {
		t.Error("azimuth 0 is outside the 90..270 window")
	}
}

func TestPanoramaPlot_WrapsThroughNorth(t *testing.T) {
	p := PanoramaPlot{Width: 800, Height: 600, AzMinDeg: 270, AzMaxDeg: 90}

	pt, ok := p.Project(look(0, 0))
	if !ok {
		t.Fatal("north not plottable in wrapped window")
	}
	if math.Abs(pt.X-400) > 1e-9 {
		t.Errorf("north x = %.3f, want 400", pt.X)
	}

	pt, ok = p.Project(look(315, 0))
	if !ok {
		t.Fatal("315 not plottable in wrapped window")
	}
	if math.Abs(pt.X-200) > 1e-9 {
		t.Errorf("315 x = %.3f, want 200", pt.X)
	}

	if _, ok := p.Project(look(180, 45)); ok {
		t.Error("south is outside the wrapped 270..90 window")
	}
}

func TestPanoramaPlot_ElevationClamping(t *testing.T) {
	p := PanoramaPlot{Width: 800, Height: 600, AzMinDeg: 0, AzMaxDeg: 0}

	// Full-circle window: any azimuth plots.
	pt, ok := p.Project(look(359, -10))
	if !ok {
		t.Fatal("full-circle window rejected an azimuth")
	}
	if pt.Y != 600 {
		t.Errorf("negative elevation y = %.3f, want baseline 600", pt.Y)
	}
	if want := 359.0 / 360 * 800; math.Abs(pt.X-want) > 1e-9 {
		t.Errorf("x = %.3f, want %.3f", pt.X, want)
	}

	pt, _ = p.Project(look(10, 95))
	if pt.Y != 0 {
		t.Errorf("above-max elevation y = %.3f, want top 0", pt.Y)
	}
}

func TestPanoramaPlot_CustomElevationCeiling(t *testing.T) {
	p := PanoramaPlot{Width: 400, Height: 200, AzMinDeg: 0, AzMaxDeg: 180, MaxElevationDeg: 30}

	pt, ok := p.Project(look(90, 15))
	if !ok {
		t.Fatal("not plottable")
	}
	if math.Abs(pt.Y-100) > 1e-9 {
		t.Errorf("15 of 30 degrees y = %.3f, want 100", pt.Y)
	}
}
