// Command passplan predicts upcoming passes for a site and prints a
// spotting plan. It runs one synchronous scan and exits; the daemon in
// cmd/skywatchd is the long-running variant.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/kb"
	"github.com/signalsfoundry/skywatch/model"
)

func main() {
	lat := flag.Float64("lat", 51.4769, "observer latitude in degrees")
	lon := flag.Float64("lon", 0.0005, "observer longitude in degrees")
	alt := flag.Float64("alt", 0.045, "observer altitude in kilometres")
	tlePath := flag.String("tle", "", "path to a TLE file (2 or 3 line sets)")
	catalogPath := flag.String("catalog", "", "path to a JSON target catalog")
	targetID := flag.String("target", "", "only plan for this target ID")
	days := flag.Float64("days", 2, "scan horizon in days")
	step := flag.Duration("step", 30*time.Second, "sampling step")
	minEl := flag.Float64("min-el", core.DefaultRiseElevationDeg, "rise elevation threshold in degrees")
	all := flag.Bool("all", false, "include daylight passes")
	sunlitOnly := flag.Bool("sunlit", false, "drop passes with the target in Earth's shadow")
	cloud := flag.Float64("cloud", -1, "cloud cover percent for ratings, negative for unknown")
	startAt := flag.String("at", "", "scan start in RFC3339, default now")
	asJSON := flag.Bool("json", false, "emit JSON instead of the table")
	flag.Parse()

	obs := model.Observer{Latitude: *lat, Longitude: *lon, AltitudeKm: *alt}
	if err := obs.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "passplan: %v\n", err)
		os.Exit(2)
	}

	start := time.Now().UTC()
	if *startAt != "" {
		t, err := time.Parse(time.RFC3339, *startAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "passplan: -at: %v\n", err)
			os.Exit(2)
		}
		start = t.UTC()
	}

	targets, err := loadTargets(*tlePath, *catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "passplan: %v\n", err)
		os.Exit(1)
	}
	if *targetID != "" {
		targets = filterTarget(targets, *targetID)
		if len(targets) == 0 {
			fmt.Fprintf(os.Stderr, "passplan: target %q not in the loaded set\n", *targetID)
			os.Exit(1)
		}
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "passplan: no targets; pass -tle or -catalog")
		os.Exit(2)
	}

	var cover *float64
	if *cloud >= 0 {
		cover = cloud
	}

	horizon := time.Duration(*days * 24 * float64(time.Hour))
	ctx := context.Background()

	type planEntry struct {
		Target model.TargetDefinition `json:"target"`
		Passes []ratedPass            `json:"passes"`
	}
	var plan []planEntry

	for _, target := range targets {
		threshold := *minEl
		if target.MinElevationDeg > threshold {
			threshold = target.MinElevationDeg
		}
		predictor := core.NewPassPredictor(core.PassConfig{
			RiseElevationDeg: threshold,
			Step:             *step,
			Horizon:          horizon,
			RequireDark:      !*all,
			RequireSunlit:    *sunlitOnly,
			RefineCrossings:  true,
		})

		prop := core.NewSGP4FromTLE(target.Line1, target.Line2)
		passes, err := predictor.Predict(ctx, obs, target.ID, prop, start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", target.ID, err)
			continue
		}

		rated := make([]ratedPass, 0, len(passes))
		for _, p := range passes {
			rating := core.PassRating(p, cover)
			rated = append(rated, ratedPass{Pass: p, Rating: rating, ColorKey: rating.ColorKey()})
		}
		plan = append(plan, planEntry{Target: target, Passes: rated})
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(plan); err != nil {
			fmt.Fprintf(os.Stderr, "passplan: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Observer %.4f, %.4f (%.0f m), scanning %s from %s\n\n",
		obs.Latitude, obs.Longitude, obs.AltitudeKm*1000, horizon, start.Format(time.RFC3339))
	for _, entry := range plan {
		printPlan(entry.Target, entry.Passes)
	}
}

type ratedPass struct {
	model.Pass
	Rating   model.Rating `json:"rating"`
	ColorKey string       `json:"color_key"`
}

func printPlan(target model.TargetDefinition, passes []ratedPass) {
	label := target.ID
	if target.Name != "" && target.Name != target.ID {
		label = fmt.Sprintf("%s (%s)", target.ID, target.Name)
	}
	if len(passes) == 0 {
		fmt.Printf("%s: no passes\n\n", label)
		return
	}
	fmt.Printf("%s: %d passes\n", label, len(passes))
	for i, p := range passes {
		fmt.Printf("%3d  rise %s az %5.1f %-3s  max %4.1f at %s  set %s az %5.1f %-3s  %-8s %s\n",
			i+1,
			p.RiseTime.Format("Jan 02 15:04:05"),
			p.RiseAzDeg,
			core.CompassPoint(p.RiseAzDeg),
			p.MaxElDeg,
			p.MaxElTime.Format("15:04:05"),
			p.SetTime.Format("15:04:05"),
			p.SetAzDeg,
			core.CompassPoint(p.SetAzDeg),
			p.Duration.Round(time.Second),
			p.Rating,
		)
	}
	fmt.Println()
}

// loadTargets merges the TLE file and the JSON catalog into one list.
func loadTargets(tlePath, catalogPath string) ([]model.TargetDefinition, error) {
	var targets []model.TargetDefinition

	if catalogPath != "" {
		catalog := kb.NewTargetCatalog()
		if _, err := kb.LoadCatalogFile(catalog, catalogPath); err != nil {
			return nil, err
		}
		targets = append(targets, catalog.List()...)
	}

	if tlePath != "" {
		fromFile, err := parseTLEFile(tlePath)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}

	return targets, nil
}

func filterTarget(targets []model.TargetDefinition, id string) []model.TargetDefinition {
	for _, t := range targets {
		if t.ID == id {
			return []model.TargetDefinition{t}
		}
	}
	return nil
}

// parseTLEFile reads classic 2-line or 3-line (name header) element
// files. IDs are derived from the name line when present, otherwise
// from the catalog number.
func parseTLEFile(path string) ([]model.TargetDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, raw := range strings.Split(string(data), "\n") {
		if line := strings.TrimRight(raw, "\r "); line != "" {
			lines = append(lines, line)
		}
	}

	var targets []model.TargetDefinition
	name := ""
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "1 ") {
			name = strings.TrimSpace(line)
			continue
		}
		if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "2 ") {
			return nil, fmt.Errorf("%s: element line 1 without a line 2 near %q", path, line)
		}
		line1, line2 := line, lines[i+1]
		i++

		if err := kb.ValidateElements(line1, line2); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		num, err := kb.CatalogNumber(line1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		id := strconv.FormatUint(uint64(num), 10)
		if name != "" {
			id = strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		}
		targets = append(targets, model.TargetDefinition{
			ID:      id,
			Name:    name,
			NoradID: num,
			Line1:   line1,
			Line2:   line2,
		})
		name = ""
	}
	return targets, nil
}
