package downloader

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/modis-grabber/common"
	"github.com/google/uuid"
)

// TimestampLayout is the layout of the TIMESTAMP line of the flags
const TimestampLayout = "2006-01-02 15:04:05.000000 MST"

const (
	keyTimestamp = "TIMESTAMP"
	keyProducts  = "PRODUCTS"
	keyStage     = "STAGE"
	keyError     = "ERROR"
)

// Flag is the content of the outcome flag of a day directory
type Flag struct {
	Outcome   common.Outcome
	Timestamp time.Time
	Products  []string
	Stage     string // FAILURE only, may be empty
	Error     string // FAILURE only
}

// Marshal returns the content of the flag file
func (f Flag) Marshal() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", keyTimestamp, f.Timestamp.UTC().Format(TimestampLayout))
	fmt.Fprintf(&b, "%s: %s\n", keyProducts, strings.Join(f.Products, ","))
	if f.Outcome == common.OutcomeFAILURE {
		if f.Stage != "" {
			fmt.Fprintf(&b, "%s: %s\n", keyStage, f.Stage)
		}
		fmt.Fprintf(&b, "%s: %s\n", keyError, oneLine(f.Error))
	}
	return []byte(b.String())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NewFlag creates the flag of the outcome of the day.
// err is only used for a FAILURE. If err is a StageError, the stage is recorded.
func NewFlag(outcome common.Outcome, products []string, err error, now time.Time) Flag {
	f := Flag{
		Outcome:   outcome,
		Timestamp: now.UTC(),
		Products:  append([]string(nil), products...),
	}
	if outcome == common.OutcomeFAILURE && err != nil {
		var serr StageError
		if errors.As(err, &serr) {
			f.Stage = serr.Stage.String()
			f.Error = serr.Err.Error()
		} else {
			f.Error = err.Error()
		}
	}
	return f
}

// WriteFlag writes the flag in dir atomically and removes the flag of the other outcome, if any.
func WriteFlag(dir string, f Flag) error {
	name := f.Outcome.FlagName()
	if name == "" {
		return fmt.Errorf("WriteFlag: no flag for outcome %s", f.Outcome)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.New().String()))
	if err := writeSync(tmp, f.Marshal()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("WriteFlag: %w", err)
	}
	for _, other := range []common.Outcome{common.OutcomeSUCCESS, common.OutcomeFAILURE} {
		if other == f.Outcome {
			continue
		}
		if err := os.Remove(filepath.Join(dir, other.FlagName())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			os.Remove(tmp)
			return fmt.Errorf("WriteFlag.Remove: %w", err)
		}
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("WriteFlag.Rename: %w", err)
	}
	return nil
}

func writeSync(file string, content []byte) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFlag returns the flag of the day directory.
// Without flag, the outcome is PENDING. Both flags in the same directory is an error.
func ReadFlag(dir string) (Flag, error) {
	var found []Flag
	for _, outcome := range []common.Outcome{common.OutcomeSUCCESS, common.OutcomeFAILURE} {
		f, err := readFlagFile(filepath.Join(dir, outcome.FlagName()), outcome)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Flag{}, fmt.Errorf("ReadFlag: %w", err)
		}
		found = append(found, f)
	}
	switch len(found) {
	case 0:
		return Flag{Outcome: common.OutcomePENDING}, nil
	case 1:
		return found[0], nil
	}
	return Flag{}, fmt.Errorf("ReadFlag: both %s and %s found in %s", common.OutcomeSUCCESS.FlagName(), common.OutcomeFAILURE.FlagName(), dir)
}

func readFlagFile(file string, outcome common.Outcome) (Flag, error) {
	fd, err := os.Open(file)
	if err != nil {
		return Flag{}, err
	}
	defer fd.Close()

	f := Flag{Outcome: outcome}
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case keyTimestamp:
			if f.Timestamp, err = time.Parse(TimestampLayout, value); err != nil {
				return Flag{}, fmt.Errorf("%s: %w", file, err)
			}
		case keyProducts:
			if value != "" {
				f.Products = strings.Split(value, ",")
			}
		case keyStage:
			f.Stage = value
		case keyError:
			f.Error = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Flag{}, fmt.Errorf("%s: %w", file, err)
	}
	return f, nil
}
