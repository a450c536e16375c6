package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/modis-grabber/common"
	"github.com/araddon/dateparse"
	"github.com/jszwec/csvutil"
)

// Columns of the geoMeta table used by the grabber. The others are ignored.
const (
	ColumnGranuleID     = "GranuleID"
	ColumnStartDateTime = "StartDateTime"
	ColumnEast          = "EastBoundingCoord"
	ColumnNorth         = "NorthBoundingCoord"
	ColumnSouth         = "SouthBoundingCoord"
	ColumnWest          = "WestBoundingCoord"
)

// CatalogParseError is returned when the geolocation metadata table does not have the expected format
type CatalogParseError struct {
	Line int // 0 if unknown
	Err  error
}

func (e CatalogParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("geoMeta: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("geoMeta: %v", e.Err)
}

func (e CatalogParseError) Unwrap() error { return e.Err }

// MetadataUnavailableError is returned when the geolocation metadata table of a platform cannot be retrieved
type MetadataUnavailableError struct {
	Platform common.Platform
	Location string
	Err      error
}

func (e MetadataUnavailableError) Error() string {
	return fmt.Sprintf("geoMeta of %s unavailable at %s: %v", e.Platform, e.Location, e.Err)
}

func (e MetadataUnavailableError) Unwrap() error { return e.Err }

// StartTime is the acquisition start of a granule, in UTC
type StartTime struct {
	time.Time
}

// UnmarshalCSV implements csvutil.Unmarshaler
func (t *StartTime) UnmarshalCSV(b []byte) error {
	v, err := dateparse.ParseIn(strings.TrimSpace(string(b)), time.UTC)
	if err != nil {
		return fmt.Errorf("StartDateTime: %w", err)
	}
	t.Time = v.UTC()
	return nil
}

// GranuleRecord is a row of the geoMeta table
type GranuleRecord struct {
	GranuleID     string    `csv:"GranuleID"`
	StartDateTime StartTime `csv:"StartDateTime"`
	East          float64   `csv:"EastBoundingCoord"`
	North         float64   `csv:"NorthBoundingCoord"`
	South         float64   `csv:"SouthBoundingCoord"`
	West          float64   `csv:"WestBoundingCoord"`
}

// ParseGeoMeta reads a geoMeta table, e.g:
//
//	# TERRA_MODIS geoMeta for 2015-01-02
//	# GranuleID,StartDateTime,ArchiveSet,OrbitNumber,DayNightFlag,EastBoundingCoord,NorthBoundingCoord,SouthBoundingCoord,WestBoundingCoord,GRingLongitude1,...
//	MOD03.A2015002.0000.061.2017319194513.hdf,2015-01-02 00:00,61,79805,D,...
//
// The header may be commented or not. Other lines starting with # are ignored.
// Records are returned in order of appearance.
func ParseGeoMeta(r io.Reader) ([]GranuleRecord, error) {
	var header []string
	var body strings.Builder
	var lines []int // line number in r of each record of body

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		content := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if header == nil && strings.HasPrefix(content, ColumnGranuleID) {
			h, err := csv.NewReader(strings.NewReader(content)).Read()
			if err != nil {
				return nil, CatalogParseError{Line: n, Err: fmt.Errorf("header: %w", err)}
			}
			for i := range h {
				h[i] = strings.TrimSpace(h[i])
			}
			header = h
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if header == nil {
			return nil, CatalogParseError{Line: n, Err: fmt.Errorf("record found before the header")}
		}
		body.WriteString(line)
		body.WriteByte('\n')
		lines = append(lines, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, CatalogParseError{Err: fmt.Errorf("read: %w", err)}
	}
	if header == nil {
		return nil, CatalogParseError{Err: fmt.Errorf("missing header")}
	}
	if err := checkHeader(header); err != nil {
		return nil, CatalogParseError{Err: err}
	}

	csvReader := csv.NewReader(strings.NewReader(body.String()))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = len(header)
	dec, err := csvutil.NewDecoder(csvReader, header...)
	if err != nil {
		return nil, CatalogParseError{Err: fmt.Errorf("header: %w", err)}
	}
	dec.DisallowMissingColumns = true

	var records []GranuleRecord
	for i := 0; ; i++ {
		var rec GranuleRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			line := 0
			if i < len(lines) {
				line = lines[i]
			}
			return nil, CatalogParseError{Line: line, Err: err}
		}
		if rec.GranuleID == "" {
			return nil, CatalogParseError{Line: lines[i], Err: fmt.Errorf("empty %s", ColumnGranuleID)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func checkHeader(header []string) error {
	columns := map[string]bool{}
	for _, h := range header {
		columns[h] = true
	}
	var missing []string
	for _, c := range []string{ColumnGranuleID, ColumnStartDateTime, ColumnEast, ColumnNorth, ColumnSouth, ColumnWest} {
		if !columns[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("header: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadGeoMeta parses the geoMeta table stored in file
func LoadGeoMeta(platform common.Platform, file string) ([]GranuleRecord, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, MetadataUnavailableError{Platform: platform, Location: file, Err: err}
	}
	defer f.Close()
	records, err := ParseGeoMeta(f)
	if err != nil {
		return nil, fmt.Errorf("LoadGeoMeta[%s].%w", file, err)
	}
	return records, nil
}
