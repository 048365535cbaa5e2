package kb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/skywatch/model"
)

// ValidateElements performs basic format validation on a TLE pair.
// This keeps garbage away from the SGP4 parser, which terminates the
// process on lines it cannot read.
func ValidateElements(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("%w: line1 length %d, expected 69", ErrTargetInvalid, len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("%w: line2 length %d, expected 69", ErrTargetInvalid, len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("%w: line1 must start with '1', got '%c'", ErrTargetInvalid, line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("%w: line2 must start with '2', got '%c'", ErrTargetInvalid, line2[0])
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: catalog number %q on line1 but %q on line2",
			ErrTargetInvalid, line1[2:7], line2[2:7])
	}
	return nil
}

// CatalogNumber extracts the NORAD catalog number from a validated
// element line.
func CatalogNumber(line1 string) (uint32, error) {
	line1 = strings.TrimSpace(line1)
	if len(line1) != 69 {
		return 0, fmt.Errorf("%w: line length %d, expected 69", ErrTargetInvalid, len(line1))
	}
	n, err := strconv.ParseUint(strings.TrimSpace(line1[2:7]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: catalog number %q: %v", ErrTargetInvalid, line1[2:7], err)
	}
	return uint32(n), nil
}

// ValidateTarget checks a full target definition before it enters the
// catalog.
func ValidateTarget(t model.TargetDefinition) error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrTargetInvalid)
	}
	if strings.ContainsAny(t.ID, " /") {
		return fmt.Errorf("%w: ID %q contains spaces or slashes", ErrTargetInvalid, t.ID)
	}
	if err := ValidateElements(t.Line1, t.Line2); err != nil {
		return err
	}
	if t.MinElevationDeg < 0 || t.MinElevationDeg >= 90 {
		return fmt.Errorf("%w: min elevation %.1f out of range [0, 90)", ErrTargetInvalid, t.MinElevationDeg)
	}
	if t.NoradID != 0 {
		n, err := CatalogNumber(t.Line1)
		if err != nil {
			return err
		}
		if n != t.NoradID {
			return fmt.Errorf("%w: NoradID %d does not match element catalog number %d",
				ErrTargetInvalid, t.NoradID, n)
		}
	}
	return nil
}
