package downloader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/interface/transfer"
)

// PlanEntry is a (product, frame) to download: the files of Directory whose name contains Rule
type PlanEntry struct {
	Product   string
	Platform  common.Platform
	Year      string
	DayOfYear string
	Frame     string
	Directory string
	Rule      string
}

// Match returns the entries of the listing matching the rule, in the same order and without duplicates
func (e PlanEntry) Match(listing []string) []string {
	var matches []string
	seen := map[string]bool{}
	for _, name := range listing {
		if strings.Contains(name, e.Rule) && !seen[name] {
			seen[name] = true
			matches = append(matches, name)
		}
	}
	return matches
}

// BuildPlan returns an entry for each product and each frame of the platform of the product.
// Products are iterated in order, then frames in order.
// The listing directory of a product is <archive>/<product>/<YYYY>/<DDD>
func BuildPlan(archive string, products []string, frames map[common.Platform][]string, date time.Time) ([]PlanEntry, error) {
	year, doy := strconv.Itoa(date.Year()), common.DayOfYear(date)
	var plan []PlanEntry
	for _, product := range products {
		platform := common.GetPlatformFromProduct(product)
		directory, err := transfer.Join(archive, product, year, doy)
		if err != nil {
			return nil, fmt.Errorf("BuildPlan[%s]: %w", product, err)
		}
		for _, frame := range frames[platform] {
			plan = append(plan, PlanEntry{
				Product:   product,
				Platform:  platform,
				Year:      year,
				DayOfYear: doy,
				Frame:     frame,
				Directory: directory,
				Rule:      common.MatchingRule(product, frame),
			})
		}
	}
	return plan, nil
}
