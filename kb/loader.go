package kb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/signalsfoundry/skywatch/model"
)

// CatalogSummary is a small summary of what was loaded from JSON,
// mainly useful for logging from main().
type CatalogSummary struct {
	TargetIDs []string
}

// Internal JSON shapes stay unexported so the file format can evolve.
type catalogJSON struct {
	Targets []targetJSON `json:"targets"`
}

type targetJSON struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	NoradID         uint32  `json:"norad_id"`
	Line1           string  `json:"line1"`
	Line2           string  `json:"line2"`
	MinElevationDeg float64 `json:"min_elevation_deg"` // optional; 0 keeps the global default
}

// LoadCatalog reads a JSON target list from r and adds every entry to
// the catalog. Entries go through the same validation as direct Add
// calls, and the first bad entry aborts the load.
func LoadCatalog(c *TargetCatalog, r io.Reader) (*CatalogSummary, error) {
	if c == nil {
		return nil, fmt.Errorf("LoadCatalog: catalog is nil")
	}

	var payload catalogJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadCatalog: decode failed: %w", err)
	}

	summary := &CatalogSummary{TargetIDs: make([]string, 0, len(payload.Targets))}
	for _, jt := range payload.Targets {
		t := targetFromJSON(jt)
		if err := c.Add(t); err != nil {
			return nil, fmt.Errorf("LoadCatalog: target %q: %w", jt.ID, err)
		}
		summary.TargetIDs = append(summary.TargetIDs, t.ID)
	}
	return summary, nil
}

func targetFromJSON(jt targetJSON) model.TargetDefinition {
	return model.TargetDefinition{
		ID:              jt.ID,
		Name:            jt.Name,
		NoradID:         jt.NoradID,
		Line1:           jt.Line1,
		Line2:           jt.Line2,
		MinElevationDeg: jt.MinElevationDeg,
	}
}

// LoadCatalogFile is LoadCatalog reading from a file path.
func LoadCatalogFile(c *TargetCatalog, path string) (*CatalogSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalogFile: %w", err)
	}
	defer f.Close()
	return LoadCatalog(c, f)
}
