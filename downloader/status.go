package downloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/service"
	"github.com/airbusgeo/modis-grabber/service/log"
	"go.uber.org/zap"
)

// DayStatus is the state of the day directory of a date
type DayStatus struct {
	Date    time.Time
	Dir     string
	Missing bool // No day directory
	Flag    Flag
}

// String returns MISSING or the outcome of the day
func (s DayStatus) String() string {
	if s.Missing {
		return "MISSING"
	}
	return s.Flag.Outcome.String()
}

// Status returns the state of the day directories of the dates, in the same order
func Status(workingDir string, dates []time.Time) ([]DayStatus, error) {
	statuses := make([]DayStatus, 0, len(dates))
	for _, date := range dates {
		s := DayStatus{Date: date, Dir: filepath.Join(workingDir, common.DayDirName(date))}
		if _, err := os.Stat(s.Dir); errors.Is(err, fs.ErrNotExist) {
			s.Missing = true
			statuses = append(statuses, s)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("Status: %w", err)
		}
		var err error
		if s.Flag, err = ReadFlag(s.Dir); err != nil {
			return nil, fmt.Errorf("Status.%w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Promote moves the day directories with a SUCCESS flag from workingDir to dataDir.
// If archive is true, the content of the day directory is zipped into dataDir/<day>.zip instead, and the day directory is removed.
// Days without SUCCESS flag are never promoted. It returns the promoted paths.
func Promote(ctx context.Context, workingDir, dataDir string, dates []time.Time, archive bool) ([]string, error) {
	statuses, err := Status(workingDir, dates)
	if err != nil {
		return nil, fmt.Errorf("Promote.%w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("Promote.MkdirAll: %w", err)
	}

	var promoted []string
	for _, s := range statuses {
		ctx := log.With(ctx, "date", s.Date.Format("2006-01-02"))
		if !s.Flag.Outcome.Usable() || s.Missing {
			log.Logger(ctx).Sugar().Debugf("skipping %s day", s)
			continue
		}
		name := common.DayDirName(s.Date)
		var dst string
		if archive {
			dst = filepath.Join(dataDir, name+"."+service.ExtensionZIP)
			if err := service.ArchiveDir(s.Dir, dst); err != nil {
				return promoted, fmt.Errorf("Promote[%s].%w", name, err)
			}
			if err := os.RemoveAll(s.Dir); err != nil {
				log.Logger(ctx).Warn("unable to remove the day directory", zap.Error(err))
			}
		} else {
			dst = filepath.Join(dataDir, name)
			if err := os.RemoveAll(dst); err != nil {
				return promoted, fmt.Errorf("Promote[%s].RemoveAll: %w", name, err)
			}
			if err := os.Rename(s.Dir, dst); err != nil {
				return promoted, fmt.Errorf("Promote[%s].Rename: %w", name, err)
			}
		}
		log.Logger(ctx).Sugar().Infof("promoted to %s", dst)
		promoted = append(promoted, dst)
	}
	return promoted, nil
}
