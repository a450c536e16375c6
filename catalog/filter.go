package catalog

import (
	"fmt"

	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/service/geometry"
)

// TimeWindow is an inclusive range of UTC hours
type TimeWindow struct {
	MinHour int `yaml:"min_hour" env:"MIN_HOUR"`
	MaxHour int `yaml:"max_hour" env:"MAX_HOUR"`
}

// DefaultTimeWindow is 02:00-10:59 UTC, i.e. 10:00-18:59 in Singapore (UTC+8)
var DefaultTimeWindow = TimeWindow{MinHour: 2, MaxHour: 10}

// Contains returns true if hour is in the window
func (w TimeWindow) Contains(hour int) bool {
	return w.MinHour <= hour && hour <= w.MaxHour
}

// Validate checks that the hours are ordered and in [0, 23]
func (w TimeWindow) Validate() error {
	if w.MinHour < 0 || w.MaxHour > 23 || w.MinHour > w.MaxHour {
		return fmt.Errorf("invalid time window [%d, %d]: expecting 0 <= min <= max <= 23", w.MinHour, w.MaxHour)
	}
	return nil
}

// Filter selects the granules of interest
type Filter struct {
	Box      geometry.BoundingBox
	Window   TimeWindow
	AllHours bool // Skip the time window
}

// Keep returns true if the granule overlaps the box and was acquired in the time window
func (f Filter) Keep(r GranuleRecord) bool {
	if !f.Box.Overlaps(r.North, r.South, r.East, r.West) {
		return false
	}
	return f.AllHours || f.Window.Contains(r.StartDateTime.Hour())
}

// Select returns the records to keep, in the same order
func (f Filter) Select(records []GranuleRecord) []GranuleRecord {
	var selected []GranuleRecord
	for _, r := range records {
		if f.Keep(r) {
			selected = append(selected, r)
		}
	}
	return selected
}

// Frames returns the frame keys of the records to keep, in the same order and without duplicates
func (f Filter) Frames(records []GranuleRecord) ([]string, error) {
	var frames []string
	seen := map[string]bool{}
	for _, r := range f.Select(records) {
		key, err := common.FrameKey(r.GranuleID)
		if err != nil {
			return nil, CatalogParseError{Err: err}
		}
		if !seen[key] {
			seen[key] = true
			frames = append(frames, key)
		}
	}
	return frames, nil
}

// PlatformFrames loads the geoMeta table of each platform and returns the frame keys to keep for each of them
func (f Filter) PlatformFrames(tables map[common.Platform]string) (map[common.Platform][]string, error) {
	frames := map[common.Platform][]string{}
	for _, platform := range common.Platforms {
		file, ok := tables[platform]
		if !ok {
			continue
		}
		records, err := LoadGeoMeta(platform, file)
		if err != nil {
			return nil, fmt.Errorf("PlatformFrames[%s].%w", platform, err)
		}
		if frames[platform], err = f.Frames(records); err != nil {
			return nil, fmt.Errorf("PlatformFrames[%s].%w", platform, err)
		}
	}
	return frames, nil
}
