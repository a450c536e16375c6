package common

import (
	"fmt"
	"strings"
	"time"
)

// Platform is the satellite carrying the MODIS instrument
type Platform int

const (
	UnknownPlatform Platform = iota
	Terra                    // Primary platform. Products MOD*, e.g. MOD03.A2015002.0205.061.2017319194513.hdf
	Aqua                     // Secondary platform. Products MYD*, e.g. MYD03.A2015002.0450.061.2018048192245.hdf
)

// Platforms lists the known platforms, primary first
var Platforms = []Platform{Terra, Aqua}

func (p Platform) String() string {
	switch p {
	case Terra:
		return "TERRA"
	case Aqua:
		return "AQUA"
	}
	return "UNKNOWN"
}

// Prefix returns the product-name prefix of the platform (MOD or MYD)
func (p Platform) Prefix() string {
	switch p {
	case Terra:
		return "MOD"
	case Aqua:
		return "MYD"
	}
	return ""
}

// GeolocationProduct returns the name of the geolocation product of the platform (MOD03 or MYD03)
func (p Platform) GeolocationProduct() string {
	if p == UnknownPlatform {
		return ""
	}
	return p.Prefix() + "03"
}

// GetPlatformFromString returns the platform from the user input
func GetPlatformFromString(input string) Platform {
	switch strings.ToLower(input) {
	case "terra", "mod":
		return Terra
	case "aqua", "myd":
		return Aqua
	}
	return UnknownPlatform
}

// GetPlatformFromProduct returns the platform providing the product.
// Products whose name contains MYD come from Aqua, all the others from Terra.
func GetPlatformFromProduct(product string) Platform {
	if strings.Contains(product, Aqua.Prefix()) {
		return Aqua
	}
	return Terra
}

// ProductPlatforms returns the platforms needed by the products, in Platforms order
func ProductPlatforms(products []string) []Platform {
	needed := map[Platform]bool{}
	for _, p := range products {
		needed[GetPlatformFromProduct(p)] = true
	}
	var platforms []Platform
	for _, p := range Platforms {
		if needed[p] {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// Granule identifiers are dot-separated:
// PRODUCT.AYYYYDDD.HHMM.CCC.YYYYDDDHHMMSS.hdf
// The frame key is made of the segments [frameKeyFirst, frameKeyLast), i.e AYYYYDDD.HHMM.CCC
// It is shared by all the products acquired at the same time by the same platform.
const (
	frameKeyFirst = 1
	frameKeyLast  = 4
)

// FrameKey returns the reusable part of a granule identifier
func FrameKey(granuleID string) (string, error) {
	segments := strings.Split(granuleID, ".")
	if len(segments) < frameKeyLast {
		return "", fmt.Errorf("FrameKey: invalid granule identifier %q: expecting at least %d dot-separated segments", granuleID, frameKeyLast)
	}
	return strings.Join(segments[frameKeyFirst:frameKeyLast], "."), nil
}

// MatchingRule returns the substring identifying the files of the product for the given frame
func MatchingRule(product, frameKey string) string {
	return product + "." + frameKey + "."
}

// GeoMetaFileName returns the name of the daily geolocation metadata table of the platform
// e.g. MOD03_2015-01-02.txt
func GeoMetaFileName(p Platform, date time.Time) string {
	return fmt.Sprintf("%s_%s.txt", p.GeolocationProduct(), date.Format("2006-01-02"))
}

// DayDirName returns the name of the working directory of the day (data-2015-1-2)
func DayDirName(date time.Time) string {
	return fmt.Sprintf("data-%d-%d-%d", date.Year(), int(date.Month()), date.Day())
}

// DayOfYear returns the zero-padded day of the year (002)
func DayOfYear(date time.Time) string {
	return fmt.Sprintf("%03d", date.YearDay())
}
