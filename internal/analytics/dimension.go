package analytics

import "strings"

// Dimension selects the column a funnel or scroll breakdown is grouped by.
type Dimension string

const (
	DimensionAll              Dimension = "all"
	DimensionBrowser          Dimension = "browser"
	DimensionDeviceCategory   Dimension = "device_category"
	DimensionCountry          Dimension = "country"
	DimensionOperatingSystem  Dimension = "operating_system"
	DimensionScreenResolution Dimension = "screen_resolution"
)

// AllDimensionValue is the single group label used for DimensionAll.
const AllDimensionValue = "ALL"

// notSet labels rows whose dimension column is empty, as GA4 does.
const notSet = "(not set)"

// Dimensions lists every accepted dimension in display order.
var Dimensions = []Dimension{
	DimensionAll,
	DimensionBrowser,
	DimensionDeviceCategory,
	DimensionCountry,
	DimensionOperatingSystem,
	DimensionScreenResolution,
}

// ParseDimension reports whether s names a known dimension. Matching is case-insensitive.
func ParseDimension(s string) (Dimension, bool) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Dimensions {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// DimensionOrAll returns the named dimension, or DimensionAll for anything unknown.
func DimensionOrAll(s string) Dimension {
	if d, ok := ParseDimension(s); ok {
		return d
	}
	return DimensionAll
}

// valueOf returns the group label of row for d.
func (d Dimension) valueOf(row EventRow) string {
	var v string
	switch d {
	case DimensionBrowser:
		v = row.Browser
	case DimensionDeviceCategory:
		v = row.DeviceCategory
	case DimensionCountry:
		v = row.Country
	case DimensionOperatingSystem:
		v = row.OperatingSystem
	case DimensionScreenResolution:
		v = row.ScreenResolution
	default:
		return AllDimensionValue
	}
	if v == "" {
		return notSet
	}
	return v
}
