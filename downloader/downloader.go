package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/airbusgeo/modis-grabber/catalog"
	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/interface/transfer"
	"github.com/airbusgeo/modis-grabber/service/log"
	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Grabber acquires the MODIS products of a region, one day at a time.
// The configuration is read-only during a run.
type Grabber struct {
	Transfer   transfer.Transfer
	WorkingDir string   // Root of the day directories
	GeoMetaURL string   // Root of the geolocation metadata tables (<GeoMetaURL>/<PLATFORM>/<YYYY>/<PRE>03_<YYYY>-<MM>-<DD>.txt)
	ArchiveURL string   // Root of the products (<ArchiveURL>/<product>/<YYYY>/<DDD>/)
	Products   []string // e.g. MOD05_L2, MYD05_L2
	Filter     catalog.Filter
	DayTimeout time.Duration // 0: no timeout
	Clock      clock.Clock   // Defaults to clock.WallClock
}

// DayResult is the result of the acquisition of a day
type DayResult struct {
	Date    time.Time
	Dir     string
	Outcome common.Outcome // PENDING if the day could not be processed at all
	Files   []string       // Downloaded product files
	Err     error
}

// RunReport is the result of a run, in the order of the dates
type RunReport []DayResult

// Count returns the number of days of the report with the given outcome
func (r RunReport) Count(outcome common.Outcome) int {
	n := 0
	for _, d := range r {
		if d.Outcome == outcome {
			n++
		}
	}
	return n
}

func (g *Grabber) now() time.Time {
	if g.Clock == nil {
		return clock.WallClock.Now()
	}
	return g.Clock.Now()
}

// DayDir returns the working directory of the day
func (g *Grabber) DayDir(date time.Time) string {
	return filepath.Join(g.WorkingDir, common.DayDirName(date))
}

// Run processes the dates sequentially, in order.
// A failed day does not stop the run. A cancelled context stops the run before the next day.
func (g *Grabber) Run(ctx context.Context, dates []time.Time) (RunReport, error) {
	var report RunReport
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("Run: %w", err)
		}
		res := g.ProcessDay(ctx, date)
		report = append(report, res)
	}
	return report, nil
}

// ProcessDay acquires the products of the day in a fresh day directory and records the outcome in a flag.
// The day directory is emptied first, so that processing the same day twice gives the same result.
// If the outcome cannot be recorded (reset or flag failure), DayResult.Outcome is PENDING and DayResult.Err is set.
func (g *Grabber) ProcessDay(ctx context.Context, date time.Time) DayResult {
	dir := g.DayDir(date)
	ctx = log.With(ctx, "date", date.Format("2006-01-02"))
	ctx = log.With(ctx, "dir", dir)
	res := DayResult{Date: date, Dir: dir, Outcome: common.OutcomePENDING}

	if g.DayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.DayTimeout)
		defer cancel()
	}

	if err := resetDir(dir); err != nil {
		res.Err = StageError{Stage: StageReset, Err: err}
		log.Logger(ctx).Error("unable to reset the day directory", zap.Error(res.Err))
		return res
	}

	log.Logger(ctx).Sugar().Infof("processing %s", date.Format("2006-01-02"))
	files, err := g.acquire(ctx, date, dir)
	res.Files = files

	outcome := common.OutcomeSUCCESS
	if err != nil {
		outcome = common.OutcomeFAILURE
		log.Logger(ctx).Warn("day failed", zap.Error(err))
	}
	if e := WriteFlag(dir, NewFlag(outcome, g.Products, err, g.now())); e != nil {
		res.Err = fmt.Errorf("ProcessDay.%w", e)
		log.Logger(ctx).Error("unable to write the flag", zap.Error(e))
		return res
	}
	res.Outcome, res.Err = outcome, err
	log.Logger(ctx).Sugar().Infof("%s: %d file(s)", outcome, len(files))
	return res
}

// resetDir removes dir and creates it again, empty
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// acquire runs the stages following the reset of the day directory
func (g *Grabber) acquire(ctx context.Context, date time.Time, dir string) ([]string, error) {
	tables, err := g.fetchMetadata(ctx, date, dir)
	if err != nil {
		return nil, StageError{Stage: StageFetchMetadata, Err: err}
	}

	frames, err := g.Filter.PlatformFrames(tables)
	if err != nil {
		return nil, StageError{Stage: StageFilter, Err: err}
	}
	for platform, f := range frames {
		log.Logger(ctx).Sugar().Debugf("%s: %d frame(s) of interest", platform, len(f))
	}

	plan, err := BuildPlan(g.ArchiveURL, g.Products, frames, date)
	if err != nil {
		return nil, StageError{Stage: StageBuildPlan, Err: err}
	}

	files, err := g.execute(ctx, plan, dir)
	if err != nil {
		return files, StageError{Stage: StageExecute, Err: err}
	}
	return files, nil
}

// fetchMetadata downloads the geoMeta table of every platform needed by the products into dir.
func (g *Grabber) fetchMetadata(ctx context.Context, date time.Time, dir string) (map[common.Platform]string, error) {
	platforms := common.ProductPlatforms(g.Products)
	files := make([]string, len(platforms))

	wg, gctx := errgroup.WithContext(ctx)
	for i, platform := range platforms {
		i, platform := i, platform
		wg.Go(func() error {
			remote, err := transfer.Join(g.GeoMetaURL, platform.String(), strconv.Itoa(date.Year()), common.GeoMetaFileName(platform, date))
			if err != nil {
				return catalog.MetadataUnavailableError{Platform: platform, Location: g.GeoMetaURL, Err: err}
			}
			log.Logger(gctx).Sugar().Debugf("fetching %s", remote)
			if files[i], err = g.Transfer.Fetch(gctx, remote, dir); err != nil {
				return catalog.MetadataUnavailableError{Platform: platform, Location: remote, Err: err}
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	tables := map[common.Platform]string{}
	for i, platform := range platforms {
		tables[platform] = files[i]
	}
	return tables, nil
}

// execute downloads the files matching each entry of the plan into dir.
// Each directory is listed once. A missing directory is an empty listing.
func (g *Grabber) execute(ctx context.Context, plan []PlanEntry, dir string) ([]string, error) {
	listings := map[string][]string{}
	var files []string
	for _, entry := range plan {
		ctx := log.With(log.With(ctx, "product", entry.Product), "frame", entry.Frame)
		listing, ok := listings[entry.Directory]
		if !ok {
			var err error
			listing, err = g.Transfer.List(ctx, entry.Directory)
			if errors.Is(err, transfer.ErrNotFound) {
				log.Logger(ctx).Sugar().Warnf("%s not found", entry.Directory)
				err = nil
			}
			if err != nil {
				return files, TransferError{Op: "list", Location: entry.Directory, Err: err}
			}
			listings[entry.Directory] = listing
		}

		matches := entry.Match(listing)
		if len(matches) == 0 {
			log.Logger(ctx).Sugar().Debugf("no file matching %s", entry.Rule)
		}
		for _, name := range matches {
			remote, err := transfer.Join(entry.Directory, name)
			if err != nil {
				return files, TransferError{Op: "fetch", Location: entry.Directory, Err: err}
			}
			log.Logger(ctx).Sugar().Infof("downloading %s", name)
			file, err := g.Transfer.Fetch(ctx, remote, dir)
			if err != nil {
				return files, TransferError{Op: "fetch", Location: remote, Err: err}
			}
			files = append(files, file)
		}
	}
	return files, nil
}
