package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvalidDateSpecError is returned when a date specification cannot be parsed.
// Field is the offending substring.
type InvalidDateSpecError struct {
	Spec  string
	Field string
	Err   error
}

func (e InvalidDateSpecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid date spec %q: %q: %v", e.Spec, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid date spec %q: %q", e.Spec, e.Field)
}

func (e InvalidDateSpecError) Unwrap() error { return e.Err }

// maxDays bounds the relative offset and the step of a date spec
const maxDays = 1000000

// DateRange is a sequence of days from Start to End (included), every Step days.
// Start, End are midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
	Step  int
}

// ParseDateSpec parses a date specification. Supported formats:
//
//	"7"                    7 days before now
//	"2015-2-3"             3rd February 2015
//	"2015-2-3--2015-2-6"   every day from 3rd to 6th February 2015
//	"2015-2-3--2015-3-1:7" every 7 days from 3rd February to 1st March 2015
func ParseDateSpec(spec string, now time.Time) (DateRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DateRange{}, InvalidDateSpecError{Spec: spec, Field: spec, Err: fmt.Errorf("empty")}
	}

	if !strings.Contains(spec, "-") {
		days, err := strconv.Atoi(spec)
		if err != nil {
			return DateRange{}, InvalidDateSpecError{Spec: spec, Field: spec, Err: err}
		}
		if days < 0 || days > maxDays {
			return DateRange{}, InvalidDateSpecError{Spec: spec, Field: spec, Err: fmt.Errorf("offset must be in [0, %d]", maxDays)}
		}
		now = now.UTC()
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
		return DateRange{Start: d, End: d, Step: 1}, nil
	}

	startSpec, rest, isRange := strings.Cut(spec, "--")
	start, err := parseDate(spec, startSpec)
	if err != nil {
		return DateRange{}, err
	}
	if !isRange {
		return DateRange{Start: start, End: start, Step: 1}, nil
	}

	endSpec, stepSpec, hasStep := strings.Cut(rest, ":")
	end, err := parseDate(spec, endSpec)
	if err != nil {
		return DateRange{}, err
	}
	step := 1
	if hasStep {
		if step, err = strconv.Atoi(stepSpec); err != nil {
			return DateRange{}, InvalidDateSpecError{Spec: spec, Field: stepSpec, Err: err}
		}
		if step <= 0 || step > maxDays {
			return DateRange{}, InvalidDateSpecError{Spec: spec, Field: stepSpec, Err: fmt.Errorf("step must be in [1, %d]", maxDays)}
		}
	}
	return DateRange{Start: start, End: end, Step: step}, nil
}

// parseDate parses YYYY-M-D (zero padding is optional)
func parseDate(spec, date string) (time.Time, error) {
	fields := strings.Split(date, "-")
	if len(fields) != 3 {
		return time.Time{}, InvalidDateSpecError{Spec: spec, Field: date, Err: fmt.Errorf("expecting YYYY-M-D")}
	}
	var ymd [3]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, InvalidDateSpecError{Spec: spec, Field: f, Err: err}
		}
		ymd[i] = v
	}
	d := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range values (2015-2-30 => 2015-3-2)
	if d.Year() != ymd[0] || int(d.Month()) != ymd[1] || d.Day() != ymd[2] {
		return time.Time{}, InvalidDateSpecError{Spec: spec, Field: date, Err: fmt.Errorf("no such date")}
	}
	return d, nil
}

// Dates returns the ordered list of days of the range.
// It is empty if Start is after End.
func (r DateRange) Dates() []time.Time {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	var dates []time.Time
	for d := r.Start; !d.After(r.End); {
		dates = append(dates, d)
		if step > maxDays {
			break
		}
		next := d.AddDate(0, 0, step)
		if !next.After(d) {
			break
		}
		d = next
	}
	return dates
}

// ExpandDateSpec parses spec and returns its dates
func ExpandDateSpec(spec string, now time.Time) ([]time.Time, error) {
	r, err := ParseDateSpec(spec, now)
	if err != nil {
		return nil, err
	}
	return r.Dates(), nil
}
